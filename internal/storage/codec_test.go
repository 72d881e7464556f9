package storage

import (
	"errors"
	"testing"
	"time"
)

func TestDecodeRejectsVersionMismatch(t *testing.T) {
	run := sampleRun("r", time.Unix(0, 0))
	run.CodecVersion = 2
	data, err := EncodeRun(run)
	if err != nil {
		t.Fatalf("encode run: %v", err)
	}
	if _, err := DecodeRun(data); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got %v", err)
	}

	snapshot := sampleSnapshot("r", 1)
	snapshot.SchemaVersion = 0
	data, err = EncodePopulation(snapshot)
	if err != nil {
		t.Fatalf("encode population: %v", err)
	}
	if _, err := DecodePopulation(data); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got %v", err)
	}
}

func TestDecodeGenerationKeepsDuration(t *testing.T) {
	data := []byte(`{"schema_version":1,"codec_version":1,"run_id":"r","index":4,"duration":1500000000,"goal_reached_count":2,"population_size":8}`)
	record, err := DecodeGeneration(data)
	if err != nil {
		t.Fatalf("decode generation: %v", err)
	}
	if record.Duration != 1500*time.Millisecond || record.SuccessRate() != 0.25 {
		t.Fatalf("unexpected record: %+v", record)
	}
	if _, err := DecodeGeneration([]byte(`{`)); err == nil {
		t.Fatal("expected malformed payload error")
	}
}

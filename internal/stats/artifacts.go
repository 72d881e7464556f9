package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"particles/internal/model"
)

const (
	runIndexFile       = "run_index.json"
	configFile         = "config.json"
	configYAMLFile     = "config.yaml"
	generationsFile    = "generations.json"
	generationsCSVFile = "generations.csv"
	topGenomesFile     = "top_genomes.json"
	summaryFile        = "summary.json"
	populationFile     = "population.json"
	fitnessPlotFile    = "fitness.png"
)

type RunConfig struct {
	RunID              string  `json:"run_id"`
	ResumedFrom        string  `json:"resumed_from,omitempty"`
	InitialGeneration  int     `json:"initial_generation"`
	PopulationSize     int     `json:"population_size"`
	Generations        int     `json:"generations"`
	Seed               int64   `json:"seed"`
	Workers            int     `json:"workers"`
	Selection          string  `json:"selection"`
	MutationRate       float64 `json:"mutation_rate"`
	VariancePercentage float64 `json:"variance_percentage"`
	TickCadenceMS      int64   `json:"tick_cadence_ms"`
	MaxTicks           int     `json:"max_ticks"`
	Clock              string  `json:"clock"`
}

type TopGenome struct {
	Rank   int                    `json:"rank"`
	Member model.PopulationMember `json:"member"`
}

type RunArtifacts struct {
	Config      RunConfig                `json:"config"`
	ConfigYAML  []byte                   `json:"-"`
	Generations []model.GenerationRecord `json:"generations"`
	// FinalPopulation is the last scored generation.
	FinalPopulation []model.PopulationMember `json:"final_population"`
	FinalGeneration int                      `json:"final_generation"`
	TopCount        int                      `json:"-"`
}

type RunIndexEntry struct {
	RunID            string  `json:"run_id"`
	PopulationSize   int     `json:"population_size"`
	Generations      int     `json:"generations"`
	Seed             int64   `json:"seed"`
	Workers          int     `json:"workers"`
	FinalBestFitness float64 `json:"final_best_fitness"`
	GoalReached      int     `json:"goal_reached"`
	CreatedAtUTC     string  `json:"created_at_utc"`
}

// WriteRunArtifacts writes the run directory: configuration, per-generation
// records as JSON and CSV, the top genomes, a summary and a fitness plot.
func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, configFile), artifacts.Config); err != nil {
		return "", err
	}
	if len(artifacts.ConfigYAML) > 0 {
		if err := os.WriteFile(filepath.Join(runDir, configYAMLFile), artifacts.ConfigYAML, 0o644); err != nil {
			return "", err
		}
	}
	if err := writeJSON(filepath.Join(runDir, generationsFile), artifacts.Generations); err != nil {
		return "", err
	}
	if err := WriteGenerationSeries(runDir, artifacts.Generations); err != nil {
		return "", err
	}
	top := TopGenomes(artifacts.FinalPopulation, artifacts.TopCount)
	if err := writeJSON(filepath.Join(runDir, topGenomesFile), top); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, summaryFile), Summarize(artifacts.Config.RunID, artifacts.Generations)); err != nil {
		return "", err
	}
	if len(artifacts.FinalPopulation) > 0 {
		snapshot := model.PopulationSnapshot{
			RunID:      artifacts.Config.RunID,
			Generation: artifacts.FinalGeneration,
			Members:    artifacts.FinalPopulation,
		}
		if err := writeJSON(filepath.Join(runDir, populationFile), snapshot); err != nil {
			return "", err
		}
	}
	if len(artifacts.Generations) > 0 {
		title := fmt.Sprintf("run %s", artifacts.Config.RunID)
		if err := PlotFitness(artifacts.Generations, title, filepath.Join(runDir, fitnessPlotFile)); err != nil {
			return "", fmt.Errorf("plot fitness: %w", err)
		}
	}

	return runDir, nil
}

// TopGenomes ranks members by fitness, best first. A non-positive count keeps
// ten.
func TopGenomes(members []model.PopulationMember, count int) []TopGenome {
	if count <= 0 {
		count = 10
	}
	ranked := append([]model.PopulationMember(nil), members...)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Fitness > ranked[j].Fitness })
	if len(ranked) > count {
		ranked = ranked[:count]
	}
	top := make([]TopGenome, len(ranked))
	for i, m := range ranked {
		top[i] = TopGenome{Rank: i + 1, Member: m}
	}
	return top
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns indexed runs, newest first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	path := filepath.Join(baseDir, runIndexFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			// Prefer later appended entries for equal timestamps.
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

func NewRunIndexEntry(cfg RunConfig, generations []model.GenerationRecord, created time.Time) RunIndexEntry {
	summary := Summarize(cfg.RunID, generations)
	return RunIndexEntry{
		RunID:            cfg.RunID,
		PopulationSize:   cfg.PopulationSize,
		Generations:      len(generations),
		Seed:             cfg.Seed,
		Workers:          cfg.Workers,
		FinalBestFitness: summary.FinalBest,
		GoalReached:      summary.TotalGoalReached,
		CreatedAtUTC:     created.UTC().Format(time.RFC3339Nano),
	}
}

// ExportRunArtifacts copies a run directory's known files into outDir.
// Optional files that were never written are skipped.
func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	required := []string{configFile, generationsFile, generationsCSVFile, topGenomesFile, summaryFile}
	for _, file := range required {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	for _, file := range []string{configYAMLFile, populationFile, fitnessPlotFile} {
		path := filepath.Join(src, file)
		if _, err := os.Stat(path); err == nil {
			if err := copyFile(path, filepath.Join(dst, file)); err != nil {
				return "", err
			}
		} else if !os.IsNotExist(err) {
			return "", err
		}
	}

	return dst, nil
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	path := filepath.Join(baseDir, runID, configFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return RunConfig{}, false, nil
		}
		return RunConfig{}, false, err
	}

	var cfg RunConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return RunConfig{}, false, err
	}
	return cfg, true, nil
}

func WriteRunConfig(baseDir, runID string, cfg RunConfig) error {
	if strings.TrimSpace(runID) == "" {
		return fmt.Errorf("run id is required")
	}
	if strings.TrimSpace(cfg.RunID) == "" {
		cfg.RunID = strings.TrimSpace(runID)
	}
	if cfg.RunID != strings.TrimSpace(runID) {
		return fmt.Errorf("run config run id mismatch: got=%s want=%s", cfg.RunID, strings.TrimSpace(runID))
	}
	runDir := filepath.Join(baseDir, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return err
	}
	return writeJSON(filepath.Join(runDir, configFile), cfg)
}

func ReadGenerations(baseDir, runID string) ([]model.GenerationRecord, bool, error) {
	path := filepath.Join(baseDir, runID, generationsFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var records []model.GenerationRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, false, err
	}
	return records, true, nil
}

// ReadPopulation loads the final population written with the run artifacts.
func ReadPopulation(baseDir, runID string) (model.PopulationSnapshot, bool, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runID, populationFile))
	if err != nil {
		if os.IsNotExist(err) {
			return model.PopulationSnapshot{}, false, nil
		}
		return model.PopulationSnapshot{}, false, err
	}

	var snapshot model.PopulationSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return model.PopulationSnapshot{}, false, err
	}
	return snapshot, true, nil
}

var seriesHeader = []string{"generation", "duration_ms", "ticks", "goal_reached", "population", "success_rate", "best_fitness", "mean_fitness", "stddev_fitness"}

func WriteGenerationSeries(runDir string, records []model.GenerationRecord) error {
	path := filepath.Join(runDir, generationsCSVFile)
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(seriesHeader); err != nil {
		return err
	}
	for _, r := range records {
		if err := writer.Write([]string{
			strconv.Itoa(r.Index),
			strconv.FormatInt(r.Duration.Milliseconds(), 10),
			strconv.Itoa(r.Ticks),
			strconv.Itoa(r.GoalReachedCount),
			strconv.Itoa(r.PopulationSize),
			strconv.FormatFloat(r.SuccessRate(), 'f', -1, 64),
			strconv.FormatFloat(r.BestFitness, 'f', -1, 64),
			strconv.FormatFloat(r.MeanFitness, 'f', -1, 64),
			strconv.FormatFloat(r.StdDevFitness, 'f', -1, 64),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// ReadGenerationSeries reads back the generation CSV. Start times are not
// part of the series and stay zero.
func ReadGenerationSeries(baseDir, runID string) ([]model.GenerationRecord, bool, error) {
	path := filepath.Join(baseDir, runID, generationsCSVFile)
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []model.GenerationRecord{}, true, nil
		}
		return nil, false, err
	}
	if len(header) < len(seriesHeader) {
		return nil, false, fmt.Errorf("generation series header must have %d columns", len(seriesHeader))
	}

	records := make([]model.GenerationRecord, 0, 64)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		record, err := parseSeriesRow(row)
		if err != nil {
			return nil, false, err
		}
		records = append(records, record)
	}
	return records, true, nil
}

func parseSeriesRow(row []string) (model.GenerationRecord, error) {
	if len(row) < len(seriesHeader) {
		return model.GenerationRecord{}, fmt.Errorf("generation series row must have %d columns", len(seriesHeader))
	}
	ints := make([]int64, 5)
	for i := range ints {
		v, err := strconv.ParseInt(row[i], 10, 64)
		if err != nil {
			return model.GenerationRecord{}, fmt.Errorf("column %s: %w", seriesHeader[i], err)
		}
		ints[i] = v
	}
	values := make([]float64, 3)
	for i := range values {
		v, err := strconv.ParseFloat(row[6+i], 64)
		if err != nil {
			return model.GenerationRecord{}, fmt.Errorf("column %s: %w", seriesHeader[6+i], err)
		}
		values[i] = v
	}
	return model.GenerationRecord{
		Index:            int(ints[0]),
		Duration:         time.Duration(ints[1]) * time.Millisecond,
		Ticks:            int(ints[2]),
		GoalReachedCount: int(ints[3]),
		PopulationSize:   int(ints[4]),
		BestFitness:      values[0],
		MeanFitness:      values[1],
		StdDevFitness:    values[2],
	}, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}

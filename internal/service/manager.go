package service

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"curator/internal/config"
	"curator/internal/logger"
	"curator/internal/model"
	"curator/internal/report"
	"curator/internal/repository"
	"curator/internal/service/annotation"
	"curator/internal/service/balance"
	"curator/internal/service/ingest"
	"curator/internal/service/metadata"
	"curator/internal/service/overlay"
	"curator/internal/service/partition"
	"curator/internal/service/quality"
	"curator/internal/storage"
)

// Output tree layout under Config.OutputDirectory.
const (
	OverlayDirectory     = "overlays"
	PartitionDirectory   = "partitioned"
	BalancedDirectory    = "balanced"
	JoinedTableFile      = "matched_data.csv"
	PartitionSummaryFile = "partition_summary.csv"
	BalanceSummaryFile   = "balance_summary.csv"
	ReportFile           = "report.json"
)

// Repositories groups the persistence collaborators of a Manager.
type Repositories struct {
	Runs    repository.RunRepository
	Records repository.RecordRepository
	Issues  repository.IssueRepository
}

// Manager runs the curation stages in order and materializes their outputs.
type Manager struct {
	cfg    *config.Config
	store  storage.Store
	logger *logger.Logger
	repos  *Repositories // nil disables persistence

	ingestor    *ingest.Ingestor
	extractor   *annotation.Extractor
	compositor  *overlay.Compositor
	joiner      *metadata.Joiner
	partitioner *partition.Partitioner
	scorer      *quality.Scorer
	balancer    *balance.Balancer

	numWorkers int
}

// NewManager wires every stage. repos may be nil.
func NewManager(cfg *config.Config, store storage.Store, logger *logger.Logger, repos *Repositories) *Manager {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	return &Manager{
		cfg:         cfg,
		store:       store,
		logger:      logger,
		repos:       repos,
		ingestor:    ingest.NewIngestor(logger),
		extractor:   annotation.NewExtractor(store),
		compositor:  overlay.NewCompositor(store),
		joiner:      metadata.NewJoiner(logger),
		partitioner: partition.NewPartitioner(logger),
		scorer:      quality.NewScorer(store, cfg.Weights),
		balancer:    balance.NewBalancer(logger),
		numWorkers:  workers,
	}
}

// Run executes every stage and writes the full output tree.
func (m *Manager) Run(ctx context.Context) (*report.Report, error) {
	return m.execute("run", func(run *model.Run, rep *report.Report) error {
		rows, err := m.overlayStage(ctx, run, rep)
		if err != nil {
			return err
		}
		part, err := m.partitionStage(ctx, run, rep, rows, m.outputPath(OverlayDirectory))
		if err != nil {
			return err
		}
		_, err = m.balanceStage(ctx, run, rep, part, m.outputPath(PartitionDirectory))
		return err
	})
}

// Overlays extracts annotations, composes overlays and writes the joined table.
func (m *Manager) Overlays(ctx context.Context) (*report.Report, error) {
	return m.execute("overlays", func(run *model.Run, rep *report.Report) error {
		_, err := m.overlayStage(ctx, run, rep)
		return err
	})
}

// Partition splits the records of a joined table. Images are read from
// imageDir/<category>/<image_filename>, the layout of the overlays tree.
func (m *Manager) Partition(ctx context.Context, tablePath, imageDir string) (*report.Report, error) {
	return m.execute("partition", func(run *model.Run, rep *report.Report) error {
		rows, err := m.readJoinedTable(tablePath)
		if err != nil {
			return err
		}
		if err := m.persist(func(r *Repositories) error { return r.Records.InsertBatch(run.ID, rows) }); err != nil {
			return err
		}
		_, err = m.partitionStage(ctx, run, rep, rows, imageDir)
		return err
	})
}

// Balance reduces a partitioned tree written by Partition or Run.
func (m *Manager) Balance(ctx context.Context, partitionedDir string) (*report.Report, error) {
	return m.execute("balance", func(run *model.Run, rep *report.Report) error {
		rows, err := m.readJoinedTable(filepath.Join(partitionedDir, JoinedTableFile))
		if err != nil {
			return err
		}
		part, err := partition.Restore(rows)
		if err != nil {
			return fmt.Errorf("failed to read partitioned table: %w", err)
		}
		_, err = m.balanceStage(ctx, run, rep, part, partitionedDir)
		return err
	})
}

func (m *Manager) execute(command string, body func(*model.Run, *report.Report) error) (*report.Report, error) {
	run := &model.Run{
		ID:               uuid.New().String(),
		Command:          command,
		DatasetDirectory: m.cfg.DatasetDirectory,
		OutputDirectory:  m.cfg.OutputDirectory,
		Seed:             m.cfg.Partition.Seed,
		Status:           model.RunRunning,
		StartedAt:        time.Now(),
	}
	rep := report.New(run.ID)

	if err := m.persist(func(r *Repositories) error { return r.Runs.Insert(run) }); err != nil {
		return rep, err
	}
	m.logger.Info("Run %s started: %s", run.ID, command)

	err := body(run, rep)
	return rep, m.finish(run, rep, err)
}

func (m *Manager) finish(run *model.Run, rep *report.Report, runErr error) error {
	rep.Finish()
	finished := time.Now()
	run.FinishedAt = &finished
	run.Status = model.RunCompleted
	if runErr != nil {
		run.Status = model.RunFailed
	}

	data, err := json.MarshalIndent(rep, "", "  ")
	if err == nil {
		err = m.store.WriteFile(m.outputPath(ReportFile), data)
	}

	issues, warnings := rep.Snapshot()
	if perr := m.persist(func(r *Repositories) error {
		if err := r.Issues.InsertBatch(run.ID, issues, warnings); err != nil {
			return err
		}
		return r.Runs.Finish(run)
	}); perr != nil && err == nil {
		err = perr
	}

	if runErr != nil {
		m.logger.Error("Run %s failed: %v", run.ID, runErr)
		return runErr
	}
	if err != nil {
		m.logger.Error("Run %s: failed to record outcome: %v", run.ID, err)
		return err
	}
	m.logger.Info("Run %s completed with %d issues and %d warnings", run.ID, len(issues), len(warnings))
	return nil
}

// overlayStage ingests the dataset, fits and composes overlays on the worker
// pool and joins clinical metadata.
func (m *Manager) overlayStage(ctx context.Context, run *model.Run, rep *report.Report) ([]model.MetadataRow, error) {
	scan, err := m.ingestor.Scan(m.cfg.DatasetDirectory)
	if err != nil {
		return nil, err
	}
	for _, f := range scan.Failures {
		m.logger.Warning("Skipping %s: %v", f.Filename, f.Err)
		rep.Skip(report.StageIngest, f.Filename, f.Err)
	}
	rep.Warn(scan.Warnings...)
	rep.Processed(report.StageIngest, len(scan.Records))

	table, err := m.loadClinicalTable(scan.Records)
	if err != nil {
		return nil, err
	}

	outDir := m.outputPath(OverlayDirectory)
	if err := m.store.RemoveAll(outDir); err != nil {
		return nil, err
	}

	extracted := make([]metadata.ExtractedRecord, len(scan.Records))
	kept := make([]bool, len(scan.Records))
	err = m.runPool(ctx, len(scan.Records), func(_, i int) {
		extracted[i], kept[i] = m.processImage(scan.Records[i], outDir, rep)
	})
	if err != nil {
		return nil, err
	}

	records := make([]metadata.ExtractedRecord, 0, len(extracted))
	for i, rec := range extracted {
		if kept[i] {
			records = append(records, rec)
		}
	}

	rows, warnings, stats := m.joiner.Join(records, table)
	rep.Warn(warnings...)
	rep.Processed(report.StageJoin, len(rows))
	rep.Add(report.CounterClinicalMissing, stats.Unmatched)
	rep.Add(report.CounterCategoryCorrected, stats.Mismatched)

	if err := m.store.WriteTable(filepath.Join(outDir, JoinedTableFile), metadata.ToTable(rows)); err != nil {
		return nil, err
	}
	if err := m.persist(func(r *Repositories) error { return r.Records.InsertBatch(run.ID, rows) }); err != nil {
		return nil, err
	}
	return rows, nil
}

// processImage writes the overlay of one record, or a copy of its source
// when it has no usable annotation or the overlay could not be written.
// Geometry is kept only for records that have an overlay. It reports false
// when the record has to be dropped.
func (m *Manager) processImage(rec model.ImageRecord, outDir string, rep *report.Report) (metadata.ExtractedRecord, bool) {
	out := metadata.ExtractedRecord{Record: rec}
	dir := filepath.Join(outDir, string(rec.Category))

	if rec.HasAnnotation {
		maskName := filepath.Base(rec.MaskPath)
		g, err := m.extractor.FitFile(rec.MaskPath)
		if err != nil {
			m.logger.Warning("Skipping annotation %s: %v", maskName, err)
			rep.Skip(report.StageExtract, maskName, err)
		} else {
			rep.Processed(report.StageExtract, 1)

			name := overlay.OverlayFilename(rec.Filename)
			if err := m.compositor.ComposeFile(rec.SourcePath, filepath.Join(dir, name), g); err != nil {
				m.logger.Warning("Skipping overlay for %s: %v", rec.Filename, err)
				rep.Skip(report.StageOverlay, rec.Filename, err)
			} else {
				rep.Processed(report.StageOverlay, 1)
				out.Geometry = &g
				out.OverlayFilename = name
				return out, true
			}
		}
	}

	if err := m.store.CopyFile(rec.SourcePath, filepath.Join(dir, rec.Filename)); err != nil {
		rep.Skip(report.StageOverlay, rec.Filename, fmt.Errorf("%w: %v", model.ErrUnreadableImage, err))
		return out, false
	}
	return out, true
}

func (m *Manager) loadClinicalTable(records []model.ImageRecord) (metadata.ClinicalTable, error) {
	raw, err := m.store.ReadTable(m.cfg.ClinicalTable)
	if err != nil {
		return nil, fmt.Errorf("failed to load clinical table: %w", err)
	}

	var table metadata.ClinicalTable
	if m.cfg.ClinicalTableMode == config.TableModeKeyed {
		table, err = metadata.ParseKeyedTable(raw)
	} else {
		table, err = metadata.ParsePositionalTable(raw, records)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse clinical table %s: %w", m.cfg.ClinicalTable, err)
	}
	m.logger.Info("Loaded %d clinical rows from %s", len(table), m.cfg.ClinicalTable)
	return table, nil
}

func (m *Manager) readJoinedTable(tablePath string) ([]model.MetadataRow, error) {
	raw, err := m.store.ReadTable(tablePath)
	if err != nil {
		return nil, err
	}
	rows, err := metadata.FromTable(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", tablePath, err)
	}
	return rows, nil
}

// partitionStage splits rows, copies their images into the partitioned tree
// and returns the partition with split/category/filename keys.
func (m *Manager) partitionStage(ctx context.Context, run *model.Run, rep *report.Report, rows []model.MetadataRow, imageDir string) (partition.Partition, error) {
	if m.cfg.RequireOverlay {
		kept := make([]model.MetadataRow, 0, len(rows))
		for _, r := range rows {
			if r.Geometry == nil {
				rep.Skip(report.StagePartition, r.Filename, fmt.Errorf("%w: no overlay for %s", model.ErrMissingCounterpart, r.Filename))
				continue
			}
			kept = append(kept, r)
		}
		rows = kept
	}

	part, warnings, err := m.partitioner.Partition(model.GroupByCategory(rows), m.cfg.Partition)
	if err != nil {
		return partition.Partition{}, err
	}
	rep.Warn(warnings...)

	outDir := m.outputPath(PartitionDirectory)
	if err := m.store.RemoveAll(outDir); err != nil {
		return partition.Partition{}, err
	}

	locations := part.Locate()
	var assigned []model.MetadataRow
	var copies []fileCopy
	for _, s := range model.Splits {
		for _, c := range model.Categories {
			for _, r := range part.Splits[s].Records[c] {
				assigned = append(assigned, r)
				copies = append(copies, fileCopy{
					src: filepath.Join(imageDir, string(r.Category), path.Base(r.ImageFilename)),
					dst: filepath.Join(outDir, filepath.FromSlash(locations[r.ImageFilename])),
				})
			}
		}
	}
	if err := m.copyAll(ctx, copies); err != nil {
		return partition.Partition{}, err
	}

	located := metadata.Rename(assigned, locations)
	model.SortByImageNumber(located)
	if err := m.store.WriteTable(filepath.Join(outDir, JoinedTableFile), metadata.ToTable(located)); err != nil {
		return partition.Partition{}, err
	}
	if err := m.store.WriteTable(filepath.Join(outDir, PartitionSummaryFile), partitionSummaryTable(part)); err != nil {
		return partition.Partition{}, err
	}

	result, err := partition.Restore(located)
	if err != nil {
		return partition.Partition{}, err
	}
	rep.Processed(report.StagePartition, result.Total())

	if err := m.persist(func(r *Repositories) error {
		return r.Records.InsertAssignments(run.ID, partitionAssignments(result))
	}); err != nil {
		return partition.Partition{}, err
	}
	return result, nil
}

// balanceStage scores normal and benign images on the worker pool, selects the
// best per split and copies the selection into the balanced tree.
func (m *Manager) balanceStage(ctx context.Context, run *model.Run, rep *report.Report, part partition.Partition, imageDir string) (map[model.SplitName]balance.BalancedSplit, error) {
	type scoreJob struct {
		split    model.SplitName
		category model.Category
		row      model.MetadataRow
	}
	var jobs []scoreJob
	for _, s := range model.Splits {
		for _, c := range []model.Category{model.CategoryNormal, model.CategoryBenign} {
			for _, r := range part.Splits[s].Records[c] {
				jobs = append(jobs, scoreJob{split: s, category: c, row: r})
			}
		}
	}

	scores := make([]model.QualityScore, len(jobs))
	err := m.runPool(ctx, len(jobs), func(_, i int) {
		row := jobs[i].row
		score, err := m.scorer.ScoreFile(filepath.Join(imageDir, filepath.FromSlash(row.ImageFilename)))
		if err != nil {
			m.logger.Warning("Scoring %s as 0: %v", row.ImageFilename, err)
			rep.Skip(report.StageScore, row.ImageFilename, err)
			return
		}
		rep.Processed(report.StageScore, 1)
		scores[i] = score
	})
	if err != nil {
		return nil, err
	}

	scored := make(map[model.SplitName]map[model.Category][]model.ScoredRecord, len(model.Splits))
	for _, s := range model.Splits {
		scored[s] = make(map[model.Category][]model.ScoredRecord)
	}
	for i, job := range jobs {
		scored[job.split][job.category] = append(scored[job.split][job.category], model.ScoredRecord{Row: job.row, Score: scores[i]})
	}

	outDir := m.outputPath(BalancedDirectory)
	if err := m.store.RemoveAll(outDir); err != nil {
		return nil, err
	}

	results := make(map[model.SplitName]balance.BalancedSplit, len(model.Splits))
	summary := storage.Table{Columns: []string{"split", "category", "available", "selected"}}
	var selected []model.MetadataRow
	var copies []fileCopy
	var records []model.Assignment

	for _, s := range model.Splits {
		b, warnings := m.balancer.Balance(s, scored[s], part.Splits[s].Records[model.CategoryMalignant])
		rep.Warn(warnings...)
		results[s] = b

		for _, row := range b.Summary() {
			summary.Rows = append(summary.Rows, map[string]string{
				"split":     string(row.Split),
				"category":  string(row.Category),
				"available": fmt.Sprint(row.Available),
				"selected":  fmt.Sprint(row.Selected),
			})
		}
		for _, c := range model.Categories {
			for _, r := range b.Records[c] {
				selected = append(selected, r)
				copies = append(copies, fileCopy{
					src: filepath.Join(imageDir, filepath.FromSlash(r.ImageFilename)),
					dst: filepath.Join(outDir, filepath.FromSlash(r.ImageFilename)),
				})
				a := model.Assignment{
					ImageNumber: r.ImageNumber,
					Filename:    r.ImageFilename,
					Stage:       model.AssignmentBalanced,
					Split:       s,
					Category:    c,
				}
				if score, ok := b.Scores[r.ImageFilename]; ok {
					a.Score = &score
				}
				records = append(records, a)
			}
		}
	}

	if err := m.copyAll(ctx, copies); err != nil {
		return nil, err
	}
	rep.Processed(report.StageBalance, len(selected))

	model.SortByImageNumber(selected)
	if err := m.store.WriteTable(filepath.Join(outDir, JoinedTableFile), metadata.ToTable(selected)); err != nil {
		return nil, err
	}
	if err := m.store.WriteTable(filepath.Join(outDir, BalanceSummaryFile), summary); err != nil {
		return nil, err
	}
	if err := m.persist(func(r *Repositories) error { return r.Records.InsertAssignments(run.ID, records) }); err != nil {
		return nil, err
	}
	return results, nil
}

type fileCopy struct {
	src string
	dst string
}

// copyAll copies files on the worker pool and returns the first failure.
func (m *Manager) copyAll(ctx context.Context, copies []fileCopy) error {
	var mu sync.Mutex
	var firstErr error
	err := m.runPool(ctx, len(copies), func(_, i int) {
		if err := m.store.CopyFile(copies[i].src, copies[i].dst); err != nil {
			mu.Lock()
			if firstErr == nil {
				firstErr = err
			}
			mu.Unlock()
		}
	})
	if err != nil {
		return err
	}
	return firstErr
}

func (m *Manager) persist(fn func(*Repositories) error) error {
	if m.repos == nil {
		return nil
	}
	return fn(m.repos)
}

func (m *Manager) outputPath(name string) string {
	return filepath.Join(m.cfg.OutputDirectory, name)
}

func partitionSummaryTable(p partition.Partition) storage.Table {
	t := storage.Table{Columns: []string{"split", "category", "count"}}
	for _, row := range p.Summary() {
		t.Rows = append(t.Rows, map[string]string{
			"split":    string(row.Split),
			"category": string(row.Category),
			"count":    fmt.Sprint(row.Count),
		})
	}
	return t
}

func partitionAssignments(p partition.Partition) []model.Assignment {
	var out []model.Assignment
	for _, s := range model.Splits {
		for _, c := range model.Categories {
			for _, r := range p.Splits[s].Records[c] {
				out = append(out, model.Assignment{
					ImageNumber: r.ImageNumber,
					Filename:    r.ImageFilename,
					Stage:       model.AssignmentPartitioned,
					Split:       s,
					Category:    c,
				})
			}
		}
	}
	return out
}

// Package pipeline orchestrates a full batch run: discover subject
// directories, normalize and splice fragment files, flag anomalies, apply the
// cohort filter, compute metrics into the shared table, and fit the
// configured models. Subjects are processed concurrently; each subject's
// metric rows land in one atomic commit.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"gaitlab/adapters/ingest"
	"gaitlab/domain/core"
	"gaitlab/domain/gait"
	"gaitlab/domain/metrics"
	"gaitlab/domain/model"
	"gaitlab/internal"
	"gaitlab/internal/anomaly"
	"gaitlab/internal/config"
	"gaitlab/internal/errors"
	"gaitlab/internal/filter"
	imetrics "gaitlab/internal/metrics"
	imodel "gaitlab/internal/model"
	"gaitlab/internal/splice"
)

// SkippedFile records a fragment file that was dropped from the batch. Code
// carries the application error code so consumers can group skips without
// string matching.
type SkippedFile struct {
	SubjectID core.SubjectID `json:"subject_id"`
	File      string         `json:"file"`
	Reason    string         `json:"reason"`
	Code      string         `json:"code"`
}

// Result is the manifest of one batch run.
type Result struct {
	BatchID          core.BatchID     `json:"batch_id"`
	StartedAt        core.Timestamp   `json:"started_at"`
	FinishedAt       core.Timestamp   `json:"finished_at"`
	SubjectsRead     int              `json:"subjects_read"`
	SubjectsRetained int              `json:"subjects_retained"`
	FilesRead        int              `json:"files_read"`
	FilesSkipped     []SkippedFile    `json:"files_skipped,omitempty"`
	StridesFlagged   int              `json:"strides_flagged"`
	SpliceWarnings   []splice.Warning `json:"splice_warnings,omitempty"`
	Models           []*model.Result  `json:"models,omitempty"`
	ModelSkips       []string         `json:"model_skips,omitempty"`
	Subjects         []core.SubjectID `json:"subjects"`
}

// Runner wires the ingestion adapters and processing stages for batch runs.
type Runner struct {
	cfg      *config.Config
	logger   *internal.Logger
	trials   *ingest.TrialReader
	metadata *ingest.MetadataReader
	splicer  *splice.Splicer
	detector *anomaly.Detector
}

// NewRunner builds a runner from configuration.
func NewRunner(cfg *config.Config, logger *internal.Logger) *Runner {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Runner{
		cfg:      cfg,
		logger:   logger,
		trials:   ingest.NewTrialReader(cfg.Paths.DataDir),
		metadata: ingest.NewMetadataReader(cfg.Paths.MetadataFile),
		splicer:  splice.NewSplicer(splice.OverlapPolicy(cfg.Splice.OverlapPolicy)),
		detector: anomaly.NewDetector(cfg.Anomaly.SigmaThreshold),
	}
}

// Run executes one batch over the configured data directory, committing into
// table. File-level failures are logged and skipped; only setup failures
// (metadata, data directory) abort the batch.
func (r *Runner) Run(ctx context.Context, table *metrics.Table) (*Result, error) {
	result := &Result{
		BatchID:   core.NewBatchID(),
		StartedAt: core.Now(),
	}
	r.logger.Info("Starting batch %s: data=%s policy=%s sigma=%.1f",
		result.BatchID, r.cfg.Paths.DataDir, r.cfg.Splice.OverlapPolicy, r.cfg.Anomaly.SigmaThreshold)

	subjects, err := r.metadata.ReadSubjects()
	if err != nil {
		return nil, errors.Wrapf(err, "reading metadata %s", r.cfg.Paths.MetadataFile)
	}

	dirs, err := r.trials.SubjectDirs()
	if err != nil {
		return nil, errors.Wrapf(err, "scanning data directory %s", r.cfg.Paths.DataDir)
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)

	for _, dir := range dirs {
		subjectID, err := core.ParseSubjectID(dir)
		if err != nil {
			r.logger.Warn("Skipping directory %q: %v", dir, err)
			continue
		}
		subject, ok := subjects[subjectID]
		if !ok {
			r.logger.Warn("Subject %s has trial data but no metadata row, skipping", subjectID)
			continue
		}

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			read, skipped, warnings, flagged := r.processSubject(subject)
			mu.Lock()
			result.SubjectsRead++
			result.FilesRead += read
			result.FilesSkipped = append(result.FilesSkipped, skipped...)
			result.SpliceWarnings = append(result.SpliceWarnings, warnings...)
			result.StridesFlagged += flagged
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Cohort filter runs after anomaly flagging so stride counts reflect
	// valid strides only.
	view := filter.NewEngine(r.criteria()).Apply(subjects)
	result.SubjectsRetained = len(view.Subjects)
	result.Subjects = view.SubjectIDs()

	calculator := imetrics.NewCalculator(result.BatchID)
	for _, subj := range view.Subjects {
		records := calculator.ComputeSubject(subj)
		if err := table.CommitSubject(subj.ID, records); err != nil {
			return nil, err
		}
	}

	r.fitModels(table, result)

	result.FinishedAt = core.Now()
	r.logger.Info("Batch %s complete: %d/%d subjects retained, %d files, %d strides flagged, %d models",
		result.BatchID, result.SubjectsRetained, result.SubjectsRead,
		result.FilesRead, result.StridesFlagged, len(result.Models))
	return result, nil
}

// processSubject reads, normalizes, splices, and anomaly-scans every
// fragment file for one subject. The subject value is owned by this call; no
// other goroutine touches it until the barrier at g.Wait.
func (r *Runner) processSubject(subject *gait.Subject) (read int, skipped []SkippedFile, warnings []splice.Warning, flagged int) {
	files, err := r.trials.FragmentFiles(string(subject.ID))
	if err != nil {
		r.logger.Warn("Subject %s: listing fragment files failed: %v", subject.ID, err)
		return 0, nil, nil, 0
	}

	byType := make(map[gait.TrialType][]gait.Fragment)
	for _, file := range files {
		raw, err := r.trials.ReadTable(file)
		if err != nil {
			skipped = append(skipped, r.skipFile(subject.ID, file, err))
			continue
		}
		fragment, err := ingest.Normalize(string(subject.ID), raw)
		if err != nil {
			skipped = append(skipped, r.skipFile(subject.ID, file, err))
			continue
		}
		read++
		byType[fragment.Type] = append(byType[fragment.Type], *fragment)
	}

	types := make([]gait.TrialType, 0, len(byType))
	for t := range byType {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	for _, trialType := range types {
		trial, warns := r.splicer.Splice(subject.ID, trialType, byType[trialType])
		warnings = append(warnings, warns...)
		flagged += r.detector.Scan(trial)
		subject.Trials[trialType] = trial
	}
	return read, skipped, warnings, flagged
}

// skipFile logs a file-level ingest failure and records it with the
// application code that classifies it.
func (r *Runner) skipFile(subjectID core.SubjectID, file string, err error) SkippedFile {
	var appErr *errors.AppError
	switch {
	case core.IsSchemaError(err):
		appErr = errors.SchemaError(file, err)
	case core.IsTrialTypeError(err):
		appErr = errors.New(errors.CodeTrialType, err.Error())
	default:
		appErr = errors.IngestError("fragment file rejected", err)
	}
	r.logger.Warn("Subject %s: %v", subjectID, appErr)
	return SkippedFile{SubjectID: subjectID, File: file, Reason: appErr.Error(), Code: errors.GetCode(appErr)}
}

func (r *Runner) criteria() filter.Criteria {
	f := r.cfg.Filter
	return filter.Criteria{
		MinAge:        f.MinAge,
		MaxAge:        f.MaxAge,
		MaxTargetSize: f.MaxTargetSize,
		MinStrides:    f.MinStrides,
		MaxStrides:    f.MaxStrides,
		RequiredTypes: f.RequiredTrialTypes,
	}
}

// fitModels runs the configured regression and classifier per trial type.
// Model failures on a given trial type (too few complete cases, class
// imbalance) are recorded and skipped rather than failing the batch.
func (r *Runner) fitModels(table *metrics.Table, result *Result) {
	engine := imodel.NewEngine(table)
	for _, trialType := range gait.AllTrialTypes {
		regression, err := engine.FitRegression(model.Spec{
			Kind:       model.KindRegression,
			TrialType:  trialType,
			Condition:  metrics.ConditionAll,
			Outcome:    r.cfg.Model.Outcome,
			Predictors: r.cfg.Model.RegressionPredictors,
		})
		if err != nil {
			appErr := errors.ModelError(fmt.Sprintf("regression on %s", trialType), err)
			r.logger.Warn("%v, skipping", appErr)
			result.ModelSkips = append(result.ModelSkips, appErr.Error())
		} else {
			result.Models = append(result.Models, regression)
		}

		classifier, err := engine.FitClassifier(model.Spec{
			Kind:       model.KindClassification,
			TrialType:  trialType,
			Condition:  metrics.ConditionAll,
			Outcome:    r.cfg.Model.Outcome,
			Predictors: r.cfg.Model.ClassifierPredictors,
			Threshold:  r.cfg.Model.ClassThreshold,
		})
		if err != nil {
			appErr := errors.ModelError(fmt.Sprintf("classifier on %s", trialType), err)
			r.logger.Warn("%v, skipping", appErr)
			result.ModelSkips = append(result.ModelSkips, appErr.Error())
		} else {
			result.Models = append(result.Models, classifier)
		}
	}
}

package cli

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"scalpguard/db"
	"scalpguard/ml"
)

const modelName = "logistic_regression"

func runTrain(ctx context.Context, s *session, _ invocation) error {
	trainer := ml.NewTrainer(s.schema, s.cfg.CSVOptions(), s.logger)
	result, err := trainer.Run(s.cfg.Dataset.Path, s.cfg.Model.Path)
	if err != nil {
		return err
	}

	if s.cfg.Database.Path != "" {
		if err := recordTraining(ctx, s, result); err != nil {
			return err
		}
	}

	fmt.Fprintf(s.stdout, "model trained and saved to %s\n", result.ModelPath)
	return nil
}

func recordTraining(ctx context.Context, s *session, result *ml.TrainResult) (err error) {
	store, err := s.openStore()
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, store.Close()) }()

	return store.SaveTrainingLog(ctx, db.TrainingLog{
		ModelName:   modelName,
		DatasetPath: s.cfg.Dataset.Path,
		ModelPath:   result.ModelPath,
		Features:    s.schema.Features,
		Accuracy:    result.Metrics.Accuracy,
		Precision:   result.Metrics.Precision,
		Recall:      result.Metrics.Recall,
		TrainedAt:   result.Model.TrainedAt(),
		DataPoints:  result.Rows,
	})
}

func runPredict(_ context.Context, s *session, in invocation) error {
	if len(in.values) != s.schema.Arity() {
		return usagef("expected %d feature values %v, got %d", s.schema.Arity(), s.schema.Features, len(in.values))
	}
	predictor, err := ml.NewPredictor(s.cfg.Model.Path, s.schema.Features)
	if err != nil {
		return err
	}
	prediction, err := predictor.Predict(in.values)
	if err != nil {
		return err
	}
	s.logger.Debug("prediction",
		zap.Float64s("features", in.values),
		zap.Int("label", prediction.Label),
		zap.Float64("probability", prediction.Probability),
	)

	out := formatLabel(prediction, s.opts.human)
	if s.opts.proba {
		out += " " + formatProbability(prediction.Probability)
	}
	fmt.Fprintln(s.stdout, out)
	return nil
}

func runScan(ctx context.Context, s *session, in invocation) (err error) {
	records, err := ml.LoadRecords(in.path, s.cfg.Scan.IDColumn, s.schema.Features, s.cfg.CSVOptions())
	if err != nil {
		return err
	}
	predictor, err := ml.NewPredictor(s.cfg.Model.Path, s.schema.Features)
	if err != nil {
		return err
	}
	var scorer ml.Scorer = predictor
	var cached *ml.CachedPredictor
	if s.cfg.Scan.CacheSize > 0 {
		cached, err = ml.NewCachedPredictor(predictor, s.cfg.Scan.CacheSize)
		if err != nil {
			return err
		}
		scorer = cached
	}

	var store *db.Store
	if s.cfg.Database.Path != "" {
		store, err = s.openStore()
		if err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, store.Close()) }()
	}

	header := append([]string{s.cfg.Scan.IDColumn}, s.schema.Features...)
	header = append(header, s.schema.Label)
	if s.opts.proba {
		header = append(header, "probability")
	}
	w := csv.NewWriter(s.stdout)
	if err := w.Write(header); err != nil {
		return err
	}

	scannedAt := time.Now().UTC()
	results := make([]db.ScanResult, 0, len(records))
	flagged := 0
	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		prediction, err := scorer.Predict(record.Values)
		if err != nil {
			return fmt.Errorf("user %q: %w", record.ID, err)
		}
		if prediction.IsScalper() {
			flagged++
		}

		row := make([]string, 0, len(header))
		row = append(row, record.ID)
		for _, v := range record.Values {
			row = append(row, strconv.FormatFloat(v, 'f', -1, 64))
		}
		row = append(row, formatLabel(prediction, s.opts.human))
		if s.opts.proba {
			row = append(row, formatProbability(prediction.Probability))
		}
		if err := w.Write(row); err != nil {
			return err
		}

		results = append(results, db.ScanResult{
			UserID:      record.ID,
			Features:    record.Values,
			Label:       prediction.Label,
			Probability: prediction.Probability,
			ScannedAt:   scannedAt,
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	fields := []zap.Field{
		zap.String("path", in.path),
		zap.Int("users", len(records)),
		zap.Int("flagged", flagged),
	}
	if cached != nil {
		hits, misses := cached.Stats()
		fields = append(fields, zap.Int("cache_hits", hits), zap.Int("cache_misses", misses))
	}
	s.logger.Info("scan complete", fields...)

	if store != nil {
		if err := store.SaveScanResults(ctx, results); err != nil {
			return err
		}
	}
	return nil
}

func runHistory(ctx context.Context, s *session, in invocation) (err error) {
	store, err := s.openStore()
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, store.Close()) }()

	logs, err := store.LoadTrainingLog(ctx, in.limit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(s.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TRAINED_AT\tMODEL\tFEATURES\tROWS\tACCURACY\tPRECISION\tRECALL\tPATH")
	for _, entry := range logs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%.3f\t%.3f\t%.3f\t%s\n",
			entry.TrainedAt.Format(time.RFC3339),
			entry.ModelName,
			strings.Join(entry.Features, ","),
			entry.DataPoints,
			entry.Accuracy,
			entry.Precision,
			entry.Recall,
			entry.ModelPath,
		)
	}
	return tw.Flush()
}

func runSuspects(ctx context.Context, s *session, in invocation) (err error) {
	store, err := s.openStore()
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, store.Close()) }()

	suspects, err := store.LoadSuspects(ctx, in.limit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(s.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "USER_ID\tFEATURES\tPROBABILITY\tSCANNED_AT")
	for _, suspect := range suspects {
		values := make([]string, len(suspect.Features))
		for i, v := range suspect.Features {
			values[i] = strconv.FormatFloat(v, 'f', -1, 64)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			suspect.UserID,
			strings.Join(values, ","),
			formatProbability(suspect.Probability),
			suspect.ScannedAt.Format(time.RFC3339),
		)
	}
	return tw.Flush()
}

func formatLabel(p ml.Prediction, human bool) string {
	if !human {
		return strconv.Itoa(p.Label)
	}
	if p.IsScalper() {
		return "scalper"
	}
	return "not scalper"
}

func formatProbability(p float64) string {
	return strconv.FormatFloat(p, 'f', 4, 64)
}

// isUsage reports whether err came from bad invocation rather than a failed run.
func isUsage(err error) bool {
	var uerr *usageError
	return errors.As(err, &uerr)
}

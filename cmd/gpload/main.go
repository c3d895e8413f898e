package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/gpload/pkg/config"
	gpcopy "github.com/ajitpratap0/gpload/pkg/copy"
	"github.com/ajitpratap0/gpload/pkg/logger"
	"github.com/ajitpratap0/gpload/pkg/metrics"
	"github.com/ajitpratap0/gpload/pkg/models"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "gpload",
		Short: "gpload - transactional bulk COPY loader for Greenplum and PostgreSQL",
		Long: `gpload bulk-loads partitioned datasets into a warehouse table using the
COPY protocol, with optional all-or-nothing semantics: partitions land in a
staging table that is atomically renamed over the target once every
partition has succeeded.`,
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("gpload v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	var (
		configFile    string
		inputFile     string
		schemaFile    string
		table         string
		dsn           string
		delimiter     string
		partitions    int
		copyTimeout   time.Duration
		transactional bool
		tableExtras   string
		logLevel      string
	)

	loadCmd := &cobra.Command{
		Use:   "load",
		Short: "Load a delimited file into a warehouse table",
		Long: `Load reads a CSV file, splits it into partitions and uploads them in
parallel via COPY.

Example:
  gpload load --input orders.csv --table public.orders --dsn $GPLOAD_DSN --transactional`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := logger.Init(logger.Config{Level: logLevel, Encoding: "json"}); err != nil {
				return err
			}
			defer logger.Sync() // Ignore sync error

			cfg, err := resolveConfig(configFile, table, dsn, delimiter, copyTimeout, transactional, tableExtras, cmd)
			if err != nil {
				return err
			}

			return runLoad(cmd.Context(), cfg, inputFile, schemaFile, partitions)
		},
	}

	loadCmd.Flags().StringVarP(&inputFile, "input", "i", "", "Path to the CSV file to load (required)")
	_ = loadCmd.MarkFlagRequired("input")
	loadCmd.Flags().StringVar(&configFile, "config", "", "Path to a YAML job configuration file")
	loadCmd.Flags().StringVar(&schemaFile, "schema", "", "Path to a JSON schema file; defaults to text columns from the CSV header")
	loadCmd.Flags().StringVarP(&table, "table", "t", "", "Target table, optionally schema-qualified")
	loadCmd.Flags().StringVar(&dsn, "dsn", os.Getenv("GPLOAD_DSN"), "Database connection string (defaults to GPLOAD_DSN)")
	loadCmd.Flags().StringVar(&delimiter, "delimiter", config.DefaultDelimiter, "Single-character field delimiter on the COPY wire")
	loadCmd.Flags().IntVar(&partitions, "partitions", runtime.NumCPU(), "Number of partitions to split the input into")
	loadCmd.Flags().DurationVar(&copyTimeout, "copy-timeout", config.DefaultCopyTimeout, "Per-partition COPY transfer timeout")
	loadCmd.Flags().BoolVar(&transactional, "transactional", false, "Commit all partitions atomically through a staging table")
	loadCmd.Flags().StringVar(&tableExtras, "create-table-extras", "", "Fragment appended to the staging CREATE TABLE (e.g. 'DISTRIBUTED BY (id)')")
	loadCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	root.AddCommand(loadCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// resolveConfig merges the optional YAML config file with explicitly
// set command-line flags; flags win.
func resolveConfig(path, table, dsn, delimiter string, timeout time.Duration, transactional bool, extras string, cmd *cobra.Command) (*config.CopyConfig, error) {
	cfg := config.NewCopyConfig(table)
	if path != "" {
		loaded, err := config.LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if cmd.Flags().Changed("table") || cfg.TargetTable == "" {
		cfg.TargetTable = table
	}
	if cmd.Flags().Changed("dsn") || cfg.DSN == "" {
		cfg.DSN = dsn
	}
	if cmd.Flags().Changed("delimiter") {
		cfg.Delimiter = delimiter
	}
	if cmd.Flags().Changed("copy-timeout") {
		cfg.CopyTimeout = timeout
	}
	if cmd.Flags().Changed("transactional") {
		cfg.Transactional = transactional
	}
	if cmd.Flags().Changed("create-table-extras") {
		cfg.CreateTableExtras = extras
	}

	return cfg, nil
}

// runLoad reads the input, partitions it and executes the load job.
func runLoad(ctx context.Context, cfg *config.CopyConfig, inputFile, schemaFile string, partitionCount int) error {
	ctx = context.WithValue(ctx, logger.JobIDKey, uuid.New().String())
	ctx = context.WithValue(ctx, logger.TableKey, cfg.TargetTable)
	log := logger.WithContext(ctx)

	schema, header, rows, err := readInput(inputFile, schemaFile)
	if err != nil {
		return err
	}

	if partitionCount < 1 {
		partitionCount = 1
	}
	dataset := gpcopy.NewLocalDataset(partitionRows(rows, partitionCount))

	log.Info("starting load",
		zap.String("input", inputFile),
		zap.Int("rows", len(rows)),
		zap.Int("columns", len(header)),
		zap.Int("partitions", dataset.PartitionCount()),
		zap.Bool("transactional", cfg.Transactional))

	orchestrator, err := gpcopy.NewOrchestrator(gpcopy.NewOptions(cfg))
	if err != nil {
		return err
	}

	timer := metrics.NewTimer()
	if err := orchestrator.Copy(ctx, dataset, schema); err != nil {
		return err
	}

	log.Info("load finished",
		zap.Int("rows", len(rows)),
		zap.Duration("duration", timer.Stop()))

	return nil
}

// readInput parses the CSV file and resolves the schema, either from
// the JSON schema file or as text columns named by the CSV header.
func readInput(inputFile, schemaFile string) (*models.Schema, []string, []models.Row, error) {
	f, err := os.Open(inputFile)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open input file %s: %w", inputFile, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to read CSV header from %s: %w", inputFile, err)
	}

	var schema *models.Schema
	if schemaFile != "" {
		schema, err = loadSchemaFile(schemaFile)
		if err != nil {
			return nil, nil, nil, err
		}
		if len(schema.Fields) != len(header) {
			return nil, nil, nil, fmt.Errorf("schema has %d fields but CSV header has %d columns",
				len(schema.Fields), len(header))
		}
	} else {
		schema = schemaFromHeader(header)
	}

	var rows []models.Row
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to read CSV record: %w", err)
		}

		row := make(models.Row, len(record))
		for i, raw := range record {
			v, err := parseValue(raw, schema.Fields[i].Type)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("line %d, column %s: %w", line, schema.Fields[i].Name, err)
			}
			row[i] = v
		}
		rows = append(rows, row)
	}

	return schema, header, rows, nil
}

// loadSchemaFile parses a JSON schema description.
func loadSchemaFile(path string) (*models.Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file %s: %w", path, err)
	}

	var schema models.Schema
	if err := gojson.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("failed to parse schema file %s: %w", path, err)
	}

	return &schema, nil
}

// schemaFromHeader builds an all-text schema from CSV column names.
func schemaFromHeader(header []string) *models.Schema {
	fields := make([]models.Field, len(header))
	for i, name := range header {
		fields[i] = models.Field{Name: strings.TrimSpace(name), Type: models.FieldTypeString}
	}
	return &models.Schema{Name: "csv_input", Fields: fields}
}

// parseValue converts one CSV cell to the typed value the encoder
// expects. Empty cells load as NULL.
func parseValue(raw string, t models.FieldType) (interface{}, error) {
	if raw == "" {
		return nil, nil
	}

	switch t.Underlying() {
	case models.FieldTypeBool:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, err
		}
		return v, nil
	case models.FieldTypeInt16, models.FieldTypeInt32, models.FieldTypeInt64:
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, err
		}
		return v, nil
	case models.FieldTypeFloat32, models.FieldTypeFloat64:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, err
		}
		return v, nil
	case models.FieldTypeDecimal:
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, err
		}
		return v, nil
	case models.FieldTypeDate:
		v, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return nil, err
		}
		return v, nil
	case models.FieldTypeTimestamp:
		v, err := time.Parse("2006-01-02 15:04:05", raw)
		if err != nil {
			return nil, err
		}
		return v, nil
	case models.FieldTypeBinary:
		return []byte(raw), nil
	default:
		return raw, nil
	}
}

// partitionRows splits rows into count contiguous chunks of near-equal
// size. Fewer chunks come back when there are fewer rows than count.
func partitionRows(rows []models.Row, count int) [][]models.Row {
	if count > len(rows) && len(rows) > 0 {
		count = len(rows)
	}
	if len(rows) == 0 {
		return [][]models.Row{{}}
	}

	chunks := make([][]models.Row, 0, count)
	size := (len(rows) + count - 1) / count
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		chunks = append(chunks, rows[start:end])
	}

	return chunks
}

// Package gpload provides transactional bulk loading for Greenplum and
// PostgreSQL warehouses over the line-oriented COPY protocol.
//
// A load job takes a dataset that the caller has already split into
// partitions and turns many partition-parallel COPY transfers into a
// single logical write: in transactional mode every partition lands in
// a staging table, a shared counter accounts for successes, and the job
// commits by atomically renaming the staging table over the target, so
// the dataset becomes visible completely or not at all.
//
// # Architecture
//
// The pipeline is built from four components, leaves first:
//
//   - copy.ParseTableIdentifier resolves possibly schema-qualified
//     table names.
//   - copy.RowEncoder renders rows as escaped, delimited COPY text
//     lines, with the type-to-text dispatch resolved once per column.
//   - copy.UploadPartition spools one partition to a local file and
//     streams it to the table under a wall-clock deadline on a
//     dedicated connection.
//   - copy.Orchestrator coordinates the job: staging-table lifecycle,
//     partition fan-out through the Dataset capability, success
//     accounting, the commit rename or abort, and cleanup with bounded
//     retry.
//
// Partition scheduling is injected: any engine that can map an
// operation over partitions (the in-process copy.LocalDataset, or a
// distributed task runner) drives the fan-out.
//
// # Quick start
//
//	cfg := config.NewCopyConfig("public.orders")
//	cfg.DSN = os.Getenv("GPLOAD_DSN")
//	cfg.Transactional = true
//
//	orch, err := copy.NewOrchestrator(copy.NewOptions(cfg))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := orch.Copy(ctx, dataset, schema); err != nil {
//	    log.Fatal(err)
//	}
//
// The gpload CLI under cmd/gpload wraps the same pipeline for loading
// delimited files from the command line.
package gpload

// Package bidtrail is the composition root of the procurement ledger.
//
// It connects the workflow (stage transition authority, write protocol and
// projections) with a ledger adapter using the Hexagonal Architecture pattern.
//
// Every document publication, status change and workflow event of a
// procurement is appended as an immutable record to one of three streams
// (documents, status, events), filed under a key derived from the
// procurement's id and title. Nothing else is stored: the current status,
// the document catalog, the phase summary and the timeline are rebuilt from
// the records on every read.
//
// Features:
//
//   - **Append-Only**: no update or delete anywhere; a failed multi-record
//     write is reported, never rolled back.
//   - **Deterministic Replay**: projections do not depend on fetch order and
//     tolerate duplicated and malformed records.
//   - **Data-Driven Workflow**: the stage list and transition table are
//     values, loadable from YAML.
//   - **Pluggable Ledgers**: memory, files, SQLite, Redis Streams or a
//     MultiChain-style node over JSON-RPC, selected by URI.
//
// Usage:
//
//	engine, err := bidtrail.New(ctx, "fs:///var/lib/bidtrail",
//		bidtrail.WithLogger(logger),
//	)
//
//	err = engine.Workflow.Initiate(ctx, bidtrail.InitiateRequest{
//		ProcurementID: "PR-2024-017",
//		Title:         "Road Repair",
//	})
//
//	p, err := engine.Workflow.View(ctx, "PR-2024-017", "Road Repair")
package bidtrail

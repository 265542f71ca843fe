package projection_test

import (
	"fmt"

	"github.com/aretw0/bidtrail/pkg/core"
)

const (
	testID    = "PR-2024-017"
	testTitle = "Road Repair"
)

var testKey = core.DeriveKey(testID, testTitle)

func ts(minute int) string {
	return fmt.Sprintf("2024-05-02T08:%02d:00.000Z", minute)
}

func statusRecord(stage, status, timestamp string) core.Record {
	return core.Record{
		ID:     fmt.Sprintf("st-%s-%s", status, timestamp),
		Stream: core.StreamStatus,
		Key:    testKey,
		Payload: core.Payload{
			"procurement_id":    testID,
			"procurement_title": testTitle,
			"current_status":    status,
			"stage":             stage,
			"timestamp":         timestamp,
			"user_address":      "0xBAC",
		},
	}
}

func documentRecord(stage, docType string, index int, hash, timestamp string) core.Record {
	return core.Record{
		ID:     fmt.Sprintf("doc-%s-%d-%s", hash, index, timestamp),
		Stream: core.StreamDocuments,
		Key:    testKey,
		Payload: core.Payload{
			"procurement_id":    testID,
			"procurement_title": testTitle,
			"stage":             stage,
			"timestamp":         timestamp,
			"document_index":    index,
			"document_type":     docType,
			"hash":              hash,
			"file_key":          "docs/" + hash + ".pdf",
			"user_address":      "0xBAC",
			"file_size":         1024,
			"stage_metadata":    map[string]any{},
		},
	}
}

func eventRecord(stage, eventType, details, timestamp string) core.Record {
	return core.Record{
		ID:     fmt.Sprintf("ev-%s-%s", eventType, timestamp),
		Stream: core.StreamEvents,
		Key:    testKey,
		Payload: core.Payload{
			"procurement_id":    testID,
			"procurement_title": testTitle,
			"event_type":        eventType,
			"stage":             stage,
			"timestamp":         timestamp,
			"user_address":      "0xBAC",
			"details":           details,
			"category":          "workflow",
			"severity":          "info",
		},
	}
}

// withSeq numbers records in the order given, as a fetch would.
func withSeq(recs []core.Record) []core.Record {
	out := make([]core.Record, len(recs))
	for i, r := range recs {
		r.Seq = i
		out[i] = r
	}
	return out
}

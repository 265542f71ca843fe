package core

// Well-known document metadata fields. Everything else in an upload's
// metadata ends up in stage_metadata.
const (
	FieldDocumentType = "document_type"
	FieldHash         = "hash"
	FieldFileKey      = "file_key"
	FieldFileSize     = "file_size"

	// FieldPhaseIdentifier is the legacy location of a document's phase,
	// nested inside stage_metadata.
	FieldPhaseIdentifier = "phase_identifier"
)

// Event types written by the gateway.
const (
	EventDocumentUpload     = "document_upload"
	EventStageTransition    = "stage_transition"
	EventProcurementCreated = "procurement_created"
)

// DocumentEntry is the payload of a documents record.
type DocumentEntry struct {
	ProcurementID    string         `json:"procurement_id"`
	ProcurementTitle string         `json:"procurement_title"`
	Stage            string         `json:"stage"`
	Timestamp        string         `json:"timestamp"`
	DocumentIndex    int            `json:"document_index"`
	DocumentType     string         `json:"document_type"`
	Hash             string         `json:"hash"`
	FileKey          string         `json:"file_key"`
	UserAddress      string         `json:"user_address"`
	FileSize         int64          `json:"file_size"`
	StageMetadata    map[string]any `json:"stage_metadata"`
}

// StatusEntry is the payload of a status record.
type StatusEntry struct {
	ProcurementID    string `json:"procurement_id"`
	ProcurementTitle string `json:"procurement_title"`
	CurrentStatus    string `json:"current_status"`
	Stage            string `json:"stage"`
	Timestamp        string `json:"timestamp"`
	UserAddress      string `json:"user_address"`
	PreviousStatus   string `json:"previous_status,omitempty"`
	PreviousStage    string `json:"previous_stage,omitempty"`
}

// EventEntry is the payload of an events record.
type EventEntry struct {
	ProcurementID    string `json:"procurement_id"`
	ProcurementTitle string `json:"procurement_title"`
	EventType        string `json:"event_type"`
	Stage            string `json:"stage"`
	Timestamp        string `json:"timestamp"`
	UserAddress      string `json:"user_address"`
	Details          string `json:"details"`
	Category         string `json:"category"`
	Severity         string `json:"severity"`
	DocumentCount    int    `json:"document_count"`
}

// DocumentFromPayload reads a documents payload tolerantly.
func DocumentFromPayload(p Payload) DocumentEntry {
	return DocumentEntry{
		ProcurementID:    p.String("procurement_id"),
		ProcurementTitle: p.String("procurement_title"),
		Stage:            p.String("stage"),
		Timestamp:        p.String("timestamp"),
		DocumentIndex:    int(p.Int("document_index")),
		DocumentType:     p.String(FieldDocumentType),
		Hash:             p.String(FieldHash),
		FileKey:          p.String(FieldFileKey),
		UserAddress:      p.String("user_address"),
		FileSize:         p.Int(FieldFileSize),
		StageMetadata:    p.Map("stage_metadata"),
	}
}

// StatusFromPayload reads a status payload tolerantly.
func StatusFromPayload(p Payload) StatusEntry {
	return StatusEntry{
		ProcurementID:    p.String("procurement_id"),
		ProcurementTitle: p.String("procurement_title"),
		CurrentStatus:    p.String("current_status"),
		Stage:            p.String("stage"),
		Timestamp:        p.String("timestamp"),
		UserAddress:      p.String("user_address"),
		PreviousStatus:   p.String("previous_status"),
		PreviousStage:    p.String("previous_stage"),
	}
}

// EventFromPayload reads an events payload tolerantly.
func EventFromPayload(p Payload) EventEntry {
	return EventEntry{
		ProcurementID:    p.String("procurement_id"),
		ProcurementTitle: p.String("procurement_title"),
		EventType:        p.String("event_type"),
		Stage:            p.String("stage"),
		Timestamp:        p.String("timestamp"),
		UserAddress:      p.String("user_address"),
		Details:          p.String("details"),
		Category:         p.String("category"),
		Severity:         p.String("severity"),
		DocumentCount:    int(p.Int("document_count")),
	}
}

// SplitStageMetadata returns m without the four well-known document fields.
func SplitStageMetadata(m Metadata) map[string]any {
	rest := make(map[string]any, len(m))
	for k, v := range m {
		switch k {
		case FieldDocumentType, FieldHash, FieldFileKey, FieldFileSize:
			continue
		}
		rest[k] = v
	}
	return rest
}

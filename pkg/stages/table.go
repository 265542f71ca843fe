package stages

import (
	"fmt"
	"slices"
	"sort"
)

// Statuses written by the default workflow.
const (
	StatusPRSubmitted           = "PR Submitted"
	StatusPRApproved            = "PR Approved"
	StatusConferenceHeld        = "Pre-Procurement Conference Held"
	StatusConferenceSkipped     = "Pre-Procurement Conference Skipped"
	StatusBidInvitationPosted   = "Bid Invitation Posted"
	StatusBidsOpened            = "BIDS_OPENED"
	StatusBidsEvaluated         = "Bids Evaluated"
	StatusPostQualified         = "Post-Qualified"
	StatusResolutionApproved    = "Resolution Approved"
	StatusAwarded               = "Awarded"
	StatusPerformanceBondPosted = "Performance Bond Posted"
	StatusContractSigned        = "Contract Signed"
	StatusNoticeToProceedIssued = "Notice to Proceed Issued"
	StatusInProgress            = "In Progress"
	StatusCompleted             = "Completed"
)

// ActionKind tells the workflow layer what an action expects.
type ActionKind string

const (
	// KindUpload actions publish documents for the target stage.
	KindUpload ActionKind = "upload"
	// KindTransition actions only move the procurement to the target stage/status.
	KindTransition ActionKind = "transition"
	// KindComplete closes the procurement.
	KindComplete ActionKind = "complete"
)

// Action describes the next legal step of a procurement.
type Action struct {
	Name         string     `json:"name" yaml:"name"`
	Label        string     `json:"label" yaml:"label"`
	Kind         ActionKind `json:"kind" yaml:"kind"`
	TargetStage  string     `json:"target_stage" yaml:"target_stage"`
	TargetStatus string     `json:"target_status" yaml:"target_status"`
	// Alternatives are other statuses the action may end in (e.g. a skipped conference).
	Alternatives []string `json:"alternatives,omitempty" yaml:"alternatives,omitempty"`
}

// Accepts reports whether status is a valid outcome of the action.
// An empty status selects TargetStatus.
func (a Action) Accepts(status string) bool {
	if status == "" || status == a.TargetStatus {
		return true
	}
	for _, alt := range a.Alternatives {
		if status == alt {
			return true
		}
	}
	return false
}

// Outcome resolves the status the action ends in.
func (a Action) Outcome(status string) string {
	if status == "" {
		return a.TargetStatus
	}
	return status
}

// Rule maps a (stage, status) condition to an action.
type Rule struct {
	Stage  string
	When   Matcher
	Action Action
}

// Table is the transition table. It is pure data: build it once, share it freely.
type Table struct {
	stages Stages
	rules  []Rule
}

// NewTable validates the rules against the stage list and orders them by
// canonical stage position. Rules of the same stage keep their given order.
func NewTable(stages Stages, rules ...Rule) (*Table, error) {
	if stages.Len() == 0 {
		return nil, fmt.Errorf("transition table needs at least one stage")
	}
	ordered := make([]Rule, 0, len(rules))
	for i, r := range rules {
		stage, ok := stages.Canonical(r.Stage)
		if !ok {
			return nil, fmt.Errorf("rule %d: unknown stage %q", i, r.Stage)
		}
		target, ok := stages.Canonical(r.Action.TargetStage)
		if !ok {
			return nil, fmt.Errorf("rule %d (%s): unknown target stage %q", i, r.Action.Name, r.Action.TargetStage)
		}
		if r.Action.Name == "" {
			return nil, fmt.Errorf("rule %d: action has no name", i)
		}
		if r.When.Kind() == "" {
			return nil, fmt.Errorf("rule %d (%s): missing status matcher", i, r.Action.Name)
		}
		if r.Action.Kind == "" {
			r.Action.Kind = KindTransition
		}
		r.Stage = stage
		r.Action.TargetStage = target
		ordered = append(ordered, r.clone())
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return stages.Index(ordered[i].Stage) < stages.Index(ordered[j].Stage)
	})
	return &Table{stages: stages, rules: ordered}, nil
}

// MustTable is NewTable for statically known tables.
func MustTable(stages Stages, rules ...Rule) *Table {
	t, err := NewTable(stages, rules...)
	if err != nil {
		panic(err)
	}
	return t
}

// DefaultTable returns the canonical procurement workflow.
func DefaultTable() *Table {
	return MustTable(Default(), DefaultRules()...)
}

// DefaultRules returns the rules of the canonical workflow.
func DefaultRules() []Rule {
	return []Rule{
		{
			Stage: PRInitiation,
			When:  Exact(StatusPRSubmitted),
			Action: Action{Name: "approve_pr", Label: "Approve Purchase Request", Kind: KindTransition,
				TargetStage: PRInitiation, TargetStatus: StatusPRApproved},
		},
		{
			Stage: PRInitiation,
			When:  Exact(StatusPRApproved),
			Action: Action{Name: "pre_procurement", Label: "Record Pre-Procurement Conference", Kind: KindUpload,
				TargetStage: PreProcurement, TargetStatus: StatusConferenceHeld,
				Alternatives: []string{StatusConferenceSkipped}},
		},
		{
			Stage: PreProcurement,
			When:  OneOf(StatusConferenceHeld, StatusConferenceSkipped),
			Action: Action{Name: "upload_bid_invitation", Label: "Upload Invitation to Bid", Kind: KindUpload,
				TargetStage: BidInvitation, TargetStatus: StatusBidInvitationPosted},
		},
		{
			Stage: BidInvitation,
			When:  Exact(StatusBidInvitationPosted),
			Action: Action{Name: "open_bids", Label: "Upload Opened Bids", Kind: KindUpload,
				TargetStage: BidOpening, TargetStatus: StatusBidsOpened},
		},
		{
			Stage: BidOpening,
			When:  Exact(StatusBidsOpened),
			Action: Action{Name: "evaluate_bids", Label: "Upload Bid Evaluation Report", Kind: KindUpload,
				TargetStage: BidEvaluation, TargetStatus: StatusBidsEvaluated},
		},
		{
			Stage: BidEvaluation,
			When:  Exact(StatusBidsEvaluated),
			Action: Action{Name: "post_qualification", Label: "Upload Post-Qualification Report", Kind: KindUpload,
				TargetStage: PostQualification, TargetStatus: StatusPostQualified},
		},
		{
			Stage: PostQualification,
			When:  Exact(StatusPostQualified),
			Action: Action{Name: "upload_bac_resolution", Label: "Upload BAC Resolution", Kind: KindUpload,
				TargetStage: BACResolution, TargetStatus: StatusResolutionApproved},
		},
		{
			Stage: BACResolution,
			When:  Exact(StatusResolutionApproved),
			Action: Action{Name: "issue_notice_of_award", Label: "Upload Notice of Award", Kind: KindUpload,
				TargetStage: NoticeOfAward, TargetStatus: StatusAwarded},
		},
		{
			Stage: NoticeOfAward,
			When:  Exact(StatusAwarded),
			Action: Action{Name: "upload_performance_bond", Label: "Upload Performance Bond", Kind: KindUpload,
				TargetStage: PerformanceBond, TargetStatus: StatusPerformanceBondPosted},
		},
		{
			Stage: PerformanceBond,
			When:  Exact(StatusPerformanceBondPosted),
			Action: Action{Name: "upload_contract_po", Label: "Upload Contract and Purchase Order", Kind: KindUpload,
				TargetStage: ContractAndPO, TargetStatus: StatusContractSigned},
		},
		{
			Stage: ContractAndPO,
			When:  Exact(StatusContractSigned),
			Action: Action{Name: "issue_notice_to_proceed", Label: "Upload Notice to Proceed", Kind: KindUpload,
				TargetStage: NoticeToProceed, TargetStatus: StatusNoticeToProceedIssued},
		},
		{
			Stage: NoticeToProceed,
			When:  Exact(StatusNoticeToProceedIssued),
			Action: Action{Name: "start_monitoring", Label: "Start Monitoring", Kind: KindTransition,
				TargetStage: Monitoring, TargetStatus: StatusInProgress},
		},
		{
			Stage: Monitoring,
			When:  Not(StatusCompleted),
			Action: Action{Name: "complete", Label: "Mark as Completed", Kind: KindComplete,
				TargetStage: Monitoring, TargetStatus: StatusCompleted},
		},
	}
}

// Stages returns the stage list the table was built for.
func (t *Table) Stages() Stages { return t.stages }

// Rules returns a copy of the rules in evaluation order.
func (t *Table) Rules() []Rule {
	out := make([]Rule, len(t.rules))
	for i, r := range t.rules {
		out[i] = r.clone()
	}
	return out
}

// Next returns the action legal for (stage, status). The first rule, in
// canonical stage order, whose stage matches and whose matcher accepts the
// status wins. ok is false when the workflow is at rest.
func (t *Table) Next(stage, status string) (Action, bool) {
	canonical, known := t.stages.Canonical(stage)
	if !known {
		return Action{}, false
	}
	for _, r := range t.rules {
		if r.Stage == canonical && r.When.Matches(status) {
			return r.Action.clone(), true
		}
	}
	return Action{}, false
}

// Allows reports whether the named action is the legal next step for (stage, status).
func (t *Table) Allows(stage, status, name string) (Action, bool) {
	a, ok := t.Next(stage, status)
	if !ok || a.Name != name {
		return Action{}, false
	}
	return a, true
}

// Lookup finds an action by name, regardless of the current state.
func (t *Table) Lookup(name string) (Rule, bool) {
	for _, r := range t.rules {
		if r.Action.Name == name {
			return r.clone(), true
		}
	}
	return Rule{}, false
}

// InitialStatus is the status a new procurement starts in: the first status
// the rules of the first stage expect. Tables without such a rule fall back
// to StatusPRSubmitted.
func (t *Table) InitialStatus() string {
	first := t.stages.At(0)
	for _, r := range t.rules {
		if r.Stage != first {
			continue
		}
		if statuses := r.When.Statuses(); len(statuses) > 0 {
			return statuses[0]
		}
	}
	return StatusPRSubmitted
}

func (r Rule) clone() Rule {
	r.When = r.When.clone()
	r.Action = r.Action.clone()
	return r
}

func (a Action) clone() Action {
	a.Alternatives = slices.Clone(a.Alternatives)
	return a
}

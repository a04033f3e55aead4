package export

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"arkoon-rule-exporter/internal/index"
	"arkoon-rule-exporter/internal/model"
	"arkoon-rule-exporter/internal/parser"
)

var (
	ErrMissingAction     = errors.New("missing Block/Reject/Accept action")
	ErrMissingSeqNum     = errors.New("missing General/SeqNum")
	ErrMissingActivation = errors.New("missing General/@Activated")
	ErrNoRules           = errors.New("no rules exported")
)

type Options struct {
	// ExpandGroups replaces group references by the names of their leaf members.
	ExpandGroups bool
}

// RuleError names the rule element that could not be converted.
type RuleError struct {
	Position int // 1-based position in ListRule
	Name     string
	Err      error
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("rule %q (#%d): %v", e.Name, e.Position, e.Err)
}

func (e *RuleError) Unwrap() error {
	return e.Err
}

// Collect converts every rule of doc, resolving references through idx, and
// returns the records sorted by sequence number.
func Collect(doc *parser.Document, idx *index.Index, opts Options) ([]model.Rule, error) {
	byID := make(map[int]model.Rule, len(doc.Rules))
	for i := range doc.Rules {
		el := &doc.Rules[i]
		rule, err := convertRule(el, idx, opts)
		if err != nil {
			return nil, &RuleError{Position: i + 1, Name: el.Name, Err: err}
		}
		if prev, dup := byID[rule.ID]; dup {
			slog.Warn("Duplicate rule sequence number, keeping the later rule", "id", rule.ID, "replaced", prev.Name, "name", rule.Name)
		}
		byID[rule.ID] = rule
	}

	rules := make([]model.Rule, 0, len(byID))
	for _, r := range byID {
		rules = append(rules, r)
	}
	sort.Slice(rules, func(i, j int) bool {
		return rules[i].ID < rules[j].ID
	})
	return rules, nil
}

func convertRule(el *parser.RuleElement, idx *index.Index, opts Options) (model.Rule, error) {
	if el.General == nil || el.General.SeqNum == nil {
		return model.Rule{}, ErrMissingSeqNum
	}
	seq := strings.TrimSpace(*el.General.SeqNum)
	id, err := strconv.Atoi(seq)
	if err != nil {
		return model.Rule{}, fmt.Errorf("invalid sequence number %q: %w", seq, err)
	}

	if el.General.Activated == nil {
		return model.Rule{}, ErrMissingActivation
	}

	action, err := classifyAction(el.Action)
	if err != nil {
		return model.Rule{}, err
	}
	if action == model.Accept && el.Action.Accept.Selected != "true" {
		slog.Warn("No action selected, exporting as Accept", "id", id, "name", el.Name)
	}

	rule := model.Rule{
		ID:          id,
		Enabled:     enabledState(*el.General.Activated, id),
		Name:        el.Name,
		Description: el.Desc,
		Action:      action,
		NAT:         translationFlag(el.Action.Accept.SourceTranslation),
		PAT:         translationFlag(el.Action.Accept.DestinationTranslation),
	}
	if el.General.Log != nil {
		rule.Log = *el.General.Log
	}

	if rule.Sources, err = resolve(el.Sources, idx, opts); err != nil {
		return model.Rule{}, fmt.Errorf("sources: %w", err)
	}
	if rule.Destinations, err = resolve(el.Destinations, idx, opts); err != nil {
		return model.Rule{}, fmt.Errorf("destinations: %w", err)
	}
	if rule.Services, err = resolve(el.Services, idx, opts); err != nil {
		return model.Rule{}, fmt.Errorf("services: %w", err)
	}
	return rule, nil
}

// classifyAction checks Block, Reject then Accept. When neither Block nor
// Reject is selected the rule accepts.
func classifyAction(a *parser.ActionElement) (model.Action, error) {
	if a == nil || a.Block == nil || a.Reject == nil || a.Accept == nil {
		return "", ErrMissingAction
	}
	switch {
	case a.Block.Selected == "true":
		return model.Block, nil
	case a.Reject.Selected == "true":
		return model.Reject, nil
	default:
		return model.Accept, nil
	}
}

func enabledState(code string, id int) string {
	switch code {
	case "1":
		return "true"
	case "0":
		return "false"
	}
	slog.Warn("Unrecognized activation code, exporting it unchanged", "id", id, "activated", code)
	return code
}

// translationFlag exports the Enabled attribute as written, including an
// empty value. An absent translation, or one without Enabled, is "false".
func translationFlag(t *parser.Translation) string {
	if t == nil || t.Enabled == nil {
		return "false"
	}
	return *t.Enabled
}

func resolve(refs []parser.Reference, idx *index.Index, opts Options) ([]string, error) {
	if len(refs) == 0 {
		return []string{model.Any}, nil
	}

	set := make(map[string]struct{})
	for _, ref := range refs {
		guids := []string{ref.Ref}
		if opts.ExpandGroups && idx.IsGroup(ref.Ref) {
			leaves, err := idx.Expand(ref.Ref)
			if err != nil {
				return nil, err
			}
			// An empty group keeps its own name.
			if len(leaves) > 0 {
				guids = leaves
			}
		}
		for _, guid := range guids {
			set[idx.Name(guid)] = struct{}{}
		}
	}

	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

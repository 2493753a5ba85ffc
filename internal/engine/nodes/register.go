// Package nodes is the rule vocabulary: the search and action elements a
// pattern can be written with.
//
//	pattern "rename-foo" {
//	    text "foo" ignore-case=true
//	    replace "bar"
//	}
//
// A pattern holds one search (text, regex, query, symbol) and one action
// (action, replace, remove, insert-before, insert-after, log). The meaning
// of replace and remove depends on the kind of search they follow.
package nodes

import (
	"log/slog"
	"recast/internal/engine/rule"
)

// ActionTags are the action elements, valid under a pattern and inside an
// action sequence.
var ActionTags = []string{"action", "replace", "remove", "insert-before", "insert-after", "log"}

// ActionParents are the elements action tags may appear under.
var ActionParents = []string{"pattern", "action"}

type binding struct {
	key  rule.Key
	ctor rule.Constructor
}

func option(s rule.Spec) (*rule.Node, error) {
	return &rule.Node{Data: s.Data}, nil
}

// Register adds the vocabulary to r and checks the action table covers
// every search kind.
func Register(r *rule.Registry) error {
	searches := map[rule.Kind]rule.Constructor{
		KindText:   newTextSearch,
		KindRegex:  newRegexSearch,
		KindQuery:  newQuerySearch,
		KindSymbol: newSymbolSearch,
	}
	for _, kind := range Kinds {
		tag := string(kind)
		if err := r.Register(rule.Key{Tag: tag, Parent: "pattern"}, rule.CapSearch, searches[kind]); err != nil {
			return err
		}
		for _, opt := range []string{"files", "value"} {
			if err := r.Register(rule.Key{Tag: opt, Parent: tag}, rule.CapOption, option); err != nil {
				return err
			}
		}
	}
	for _, parent := range []string{"text", "regex"} {
		if err := r.Register(rule.Key{Tag: "ignore-case", Parent: parent}, rule.CapOption, option); err != nil {
			return err
		}
	}
	if err := r.Register(rule.Key{Tag: "language", Parent: "query"}, rule.CapOption, option); err != nil {
		return err
	}
	if err := r.Register(rule.Key{Tag: "description", Parent: "pattern"}, rule.CapOption, option); err != nil {
		return err
	}

	replaces := map[rule.Kind]rule.Constructor{
		KindText:   newTextReplace,
		KindRegex:  newRegexReplace,
		KindQuery:  newQueryReplace,
		KindSymbol: newSymbolRename,
	}
	for _, parent := range ActionParents {
		entries := []binding{
			{rule.Key{Tag: "action", Parent: parent}, newSequence},
			{rule.Key{Tag: "remove", Parent: parent}, newRemove},
			{rule.Key{Tag: "remove", Parent: parent, Search: KindQuery}, newQueryRemove},
			{rule.Key{Tag: "insert-before", Parent: parent}, newInsert(false)},
			{rule.Key{Tag: "insert-after", Parent: parent}, newInsert(true)},
			{rule.Key{Tag: "log", Parent: parent}, newLog},
		}
		for _, kind := range Kinds {
			entries = append(entries, binding{rule.Key{Tag: "replace", Parent: parent, Search: kind}, replaces[kind]})
		}
		for _, e := range entries {
			if err := r.Register(e.key, rule.CapAction, e.ctor); err != nil {
				return err
			}
		}
	}

	return r.Validate(ActionTags, ActionParents, Kinds)
}

// NewCompiler returns a compiler with the full vocabulary registered.
func NewCompiler(logger *slog.Logger) (*rule.Compiler, error) {
	r := rule.NewRegistry()
	if err := Register(r); err != nil {
		return nil, err
	}
	return rule.NewCompiler(r, logger), nil
}

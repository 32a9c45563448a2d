package locale

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/local/sheetpress/internal/block"
)

// WorksheetKey is the reserved override block id addressing document-level
// fields such as the title.
const WorksheetKey = "_worksheet"

// FieldKey addresses one overridable text slot: a block id plus a dot path
// into the block's JSON form ("question", "items.2.text", ...).
type FieldKey struct {
	BlockID   string
	FieldPath string
}

// Lookup fetches a manual override, if one was authored for the key.
func Lookup(ov block.Overrides, key FieldKey) (string, bool) {
	fields, ok := ov[key.BlockID]
	if !ok {
		return "", false
	}
	v, ok := fields[key.FieldPath]
	return v, ok
}

// EffectiveValue resolves the text shown for one field in the given mode.
// DE returns the base text untouched. CH returns the manual override when
// one exists, otherwise the automatic ß→ss substitution of the base.
func EffectiveValue(base string, key FieldKey, mode Mode, ov block.Overrides) string {
	if mode != ModeCH {
		return base
	}
	if v, ok := Lookup(ov, key); ok {
		return v
	}
	return Eszett(base)
}

// EffectiveTitle resolves the worksheet title for a mode.
func EffectiveTitle(title string, mode Mode, ov block.Overrides) string {
	return EffectiveValue(title, FieldKey{BlockID: WorksheetKey, FieldPath: "title"}, mode, ov)
}

// Apply produces the CH view of a block list: the automatic substitution
// applied everywhere, then each authored override written through its dot
// path. Overrides for unknown blocks or dangling paths are skipped; a stale
// correction must never break rendering.
func Apply(blocks []block.Block, ov block.Overrides) []block.Block {
	out := TransformBlocks(blocks)
	if len(ov) == 0 {
		return out
	}
	for i, b := range out {
		fields := ov[b.Meta().ID]
		if len(fields) == 0 {
			if c, ok := b.(*block.Columns); ok {
				patched := *c
				patched.Children = applyChildren(c.Children, ov)
				out[i] = &patched
			}
			continue
		}
		if patched, err := overrideBlock(b, fields); err == nil {
			out[i] = patched
		}
		if c, ok := out[i].(*block.Columns); ok {
			patched := *c
			patched.Children = applyChildren(c.Children, ov)
			out[i] = &patched
		}
	}
	return out
}

func applyChildren(children [][]block.Block, ov block.Overrides) [][]block.Block {
	out := make([][]block.Block, len(children))
	for i, col := range children {
		// Children already went through the automatic pass in Apply's
		// TransformBlocks call, so only the override write remains.
		out[i] = applyOverridesOnly(col, ov)
	}
	return out
}

func applyOverridesOnly(blocks []block.Block, ov block.Overrides) []block.Block {
	out := make([]block.Block, len(blocks))
	copy(out, blocks)
	for i, b := range out {
		if fields := ov[b.Meta().ID]; len(fields) > 0 {
			if patched, err := overrideBlock(b, fields); err == nil {
				out[i] = patched
			}
		}
		if c, ok := out[i].(*block.Columns); ok {
			patched := *c
			patched.Children = applyChildren(c.Children, ov)
			out[i] = &patched
		}
	}
	return out
}

// overrideBlock writes field overrides through the block's JSON form and
// decodes it back, so dot paths address exactly the wire-format field names.
func overrideBlock(b block.Block, fields map[string]string) (block.Block, error) {
	raw, err := json.Marshal(b)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	changed := false
	for path, value := range fields {
		if setPath(m, strings.Split(path, "."), value) {
			changed = true
		}
	}
	if !changed {
		return b, nil
	}
	patched, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return block.Unmarshal(patched)
}

// setPath writes value at the dot path inside decoded JSON. Path segments
// index maps by key and slices by decimal position. Returns false when the
// path does not resolve to an existing slot.
func setPath(node any, segments []string, value string) bool {
	if len(segments) == 0 {
		return false
	}
	seg, rest := segments[0], segments[1:]
	switch t := node.(type) {
	case map[string]any:
		if len(rest) == 0 {
			if _, ok := t[seg]; !ok {
				return false
			}
			t[seg] = value
			return true
		}
		child, ok := t[seg]
		if !ok {
			return false
		}
		return setPath(child, rest, value)
	case []any:
		idx, err := strconv.Atoi(seg)
		if err != nil || idx < 0 || idx >= len(t) {
			return false
		}
		if len(rest) == 0 {
			t[idx] = value
			return true
		}
		return setPath(t[idx], rest, value)
	default:
		return false
	}
}

// Validate reports override entries that no longer resolve against the
// current block tree, keyed "blockId.fieldPath".
func Validate(blocks []block.Block, ov block.Overrides) []string {
	index := map[string]block.Block{}
	var walk func([]block.Block)
	walk = func(bs []block.Block) {
		for _, b := range bs {
			index[b.Meta().ID] = b
			if c, ok := b.(*block.Columns); ok {
				for _, col := range c.Children {
					walk(col)
				}
			}
		}
	}
	walk(blocks)

	var stale []string
	for blockID, fields := range ov {
		if blockID == WorksheetKey {
			continue
		}
		b, ok := index[blockID]
		if !ok {
			for path := range fields {
				stale = append(stale, fmt.Sprintf("%s.%s", blockID, path))
			}
			continue
		}
		raw, err := json.Marshal(b)
		if err != nil {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil {
			continue
		}
		for path := range fields {
			if !pathExists(m, strings.Split(path, ".")) {
				stale = append(stale, fmt.Sprintf("%s.%s", blockID, path))
			}
		}
	}
	return stale
}

func pathExists(node any, segments []string) bool {
	if len(segments) == 0 {
		return true
	}
	seg, rest := segments[0], segments[1:]
	switch t := node.(type) {
	case map[string]any:
		child, ok := t[seg]
		if !ok {
			return false
		}
		return pathExists(child, rest)
	case []any:
		idx, err := strconv.Atoi(seg)
		if err != nil || idx < 0 || idx >= len(t) {
			return false
		}
		return pathExists(t[idx], rest)
	default:
		return false
	}
}

package wal

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ImPhilipGlover/EntropicGarden/kernel"
)

// EncodeValue renders a kernel.Value in the self-describing textual form of
// §6: nil, true|false, n:<double>, s:<utf8-escaped>, l:[...], m:{k=v,...},
// o:<object_id>, h:<handle_id>:<kind>. This is the one encoding ForeignHandle
// values are permitted to use: they are logged as {handle_id, kind} and
// re-resolved against a live Handle Registry on replay rather than
// round-tripped structurally.
func EncodeValue(v kernel.Value) string {
	if v == nil {
		v = kernel.Nil{}
	}
	switch vv := v.(type) {
	case kernel.Nil:
		return "nil"
	case kernel.Bool:
		if vv {
			return "true"
		}
		return "false"
	case kernel.Number:
		return "n:" + strconv.FormatFloat(float64(vv), 'g', -1, 64)
	case kernel.String:
		return "s:" + escape(string(vv))
	case kernel.List:
		parts := make([]string, len(vv))
		for i, e := range vv {
			parts[i] = EncodeValue(e)
		}
		return "l:[" + strings.Join(parts, ",") + "]"
	case *kernel.Map:
		parts := make([]string, 0, vv.Len())
		for _, k := range vv.Keys() {
			val, _ := vv.Get(k)
			parts = append(parts, escape(k)+"="+EncodeValue(val))
		}
		return "m:{" + strings.Join(parts, ",") + "}"
	case *kernel.Object:
		return fmt.Sprintf("o:%d", vv.ID())
	case kernel.ForeignHandle:
		return "h:" + escape(vv.HandleID) + ":" + strconv.Itoa(int(vv.HandleKind))
	default:
		return "s:" + escape(fmt.Sprintf("%v", v))
	}
}

// escape replaces tabs, newlines, backslashes, and the structural
// delimiters list/map/map-entry encoding relies on (',', '=', '[', ']',
// '{', '}') in encoded_value so that records remain exactly one line per §6
// ("Records with embedded tabs or newlines in encoded_value MUST be
// escaped") and so splitTop and the map-entry '=' split never mistake a
// string's own contents for structure.
func escape(s string) string {
	r := strings.NewReplacer(
		"\\", `\\`,
		"\t", `\t`,
		"\n", `\n`,
		",", `\,`,
		"=", `\=`,
		"[", `\[`,
		"]", `\]`,
		"{", `\{`,
		"}", `\}`,
	)
	return r.Replace(s)
}

func unescape(s string) string {
	r := strings.NewReplacer(
		`\t`, "\t",
		`\n`, "\n",
		`\,`, ",",
		`\=`, "=",
		`\[`, "[",
		`\]`, "]",
		`\{`, "{",
		`\}`, "}",
		`\\`, "\\",
	)
	return r.Replace(s)
}

// DecodeValue parses the self-describing textual form produced by
// EncodeValue. Decoding h:<handle_id>:<kind> yields a bare kernel.ForeignHandle
// that the replay sink is responsible for re-resolving against a live
// Handle Registry; decoding o:<id> yields the same placeholder behavior for
// Object references, since an Object cannot be reconstructed from its id
// alone (the sink must already know the live object with that id, or treat
// it as informational).
func DecodeValue(s string) (kernel.Value, error) {
	switch {
	case s == "nil":
		return kernel.Nil{}, nil
	case s == "true":
		return kernel.Bool(true), nil
	case s == "false":
		return kernel.Bool(false), nil
	case strings.HasPrefix(s, "n:"):
		f, err := strconv.ParseFloat(s[2:], 64)
		if err != nil {
			return nil, fmt.Errorf("wal: decode number %q: %w", s, err)
		}
		return kernel.Number(f), nil
	case strings.HasPrefix(s, "s:"):
		return kernel.String(unescape(s[2:])), nil
	case strings.HasPrefix(s, "l:["):
		inner := strings.TrimSuffix(strings.TrimPrefix(s, "l:["), "]")
		items, err := splitTop(inner)
		if err != nil {
			return nil, err
		}
		out := make(kernel.List, len(items))
		for i, it := range items {
			v, err := DecodeValue(it)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case strings.HasPrefix(s, "m:{"):
		inner := strings.TrimSuffix(strings.TrimPrefix(s, "m:{"), "}")
		items, err := splitTop(inner)
		if err != nil {
			return nil, err
		}
		out := kernel.NewMap()
		for _, it := range items {
			if it == "" {
				continue
			}
			eq := indexUnescaped(it, '=')
			if eq < 0 {
				return nil, fmt.Errorf("wal: decode map entry %q: missing '='", it)
			}
			k := unescape(it[:eq])
			v, err := DecodeValue(it[eq+1:])
			if err != nil {
				return nil, err
			}
			out.Set(k, v)
		}
		return out, nil
	case strings.HasPrefix(s, "o:"):
		id, err := strconv.ParseUint(s[2:], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("wal: decode object id %q: %w", s, err)
		}
		return objectPlaceholder{id: id}, nil
	case strings.HasPrefix(s, "h:"):
		rest := s[2:]
		i := strings.LastIndexByte(rest, ':')
		if i < 0 {
			return nil, fmt.Errorf("wal: decode handle %q: missing kind", s)
		}
		kindN, err := strconv.Atoi(rest[i+1:])
		if err != nil {
			return nil, fmt.Errorf("wal: decode handle %q: bad kind: %w", s, err)
		}
		return kernel.ForeignHandle{
			HandleID:   unescape(rest[:i]),
			HandleKind: kernel.ForeignHandleKind(kindN),
		}, nil
	default:
		return nil, fmt.Errorf("wal: unrecognized encoded_value %q", s)
	}
}

// objectPlaceholder stands in for an o:<id> reference decoded from the log.
// It satisfies kernel.Value only so DecodeValue can return something; a
// replay sink that cares about object graph edges must resolve placeholders
// against the objects it has already replayed by id.
type objectPlaceholder struct{ id uint64 }

func (objectPlaceholder) Kind() kernel.ValueKind { return kernel.KindObject }

// ObjectPlaceholderID extracts the referenced object id, if v is one.
func ObjectPlaceholderID(v kernel.Value) (uint64, bool) {
	p, ok := v.(objectPlaceholder)
	return p.id, ok
}

// indexUnescaped returns the index of the first occurrence of b in s that is
// not part of a backslash escape sequence, or -1 if there is none. Map
// entries use this to find the k=v separator without mistaking an escaped
// '\=' inside the key for the boundary.
func indexUnescaped(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case b:
			return i
		}
	}
	return -1
}

// splitTop splits s on top-level commas, i.e. commas not inside a nested
// l:[...] or m:{...} or an escaped backslash sequence.
func splitTop(s string) ([]string, error) {
	if s == "" {
		return nil, nil
	}
	var out []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++ // skip escaped char
		case '[', '{':
			depth++
		case ']', '}':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("wal: unbalanced brackets in %q", s)
			}
		case ',':
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("wal: unbalanced brackets in %q", s)
	}
	out = append(out, s[start:])
	return out, nil
}

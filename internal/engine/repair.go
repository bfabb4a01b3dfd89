package engine

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrMalformedOutput is returned when generator output is not usable JSON
// even after repair.
var ErrMalformedOutput = errors.New("engine: malformed generator output")

const responseSchema = `{
  "type": "object",
  "required": ["narrativeText"],
  "properties": {
    "narrativeText": {"type": "string"},
    "actionType": {"type": "string"},
    "personalitySignal": {
      "type": ["object", "null"],
      "required": ["trait", "delta"],
      "properties": {
        "trait": {"enum": ["openness", "conscientiousness", "extraversion", "agreeableness", "neuroticism"]},
        "delta": {"type": "number"},
        "confidence": {"type": "number", "minimum": 0, "maximum": 10}
      }
    },
    "skillCheckDifficulty": {"type": ["integer", "null"]},
    "successNarrative": {"type": "string"},
    "failureNarrative": {"type": "string"},
    "roomName": {"type": "string"},
    "roomDescription": {"type": "string"}
  }
}`

var schema = jsonschema.MustCompileString("response.schema.json", responseSchema)

// ParseResponse decodes generator output. Markdown fences are stripped; if
// the text still does not decode, Repair is applied once before giving up.
func ParseResponse(text string) (*Response, error) {
	raw := StripFences(text)
	resp, err := decodeResponse(raw)
	if err == nil {
		return resp, nil
	}
	resp, rerr := decodeResponse(Repair(raw))
	if rerr != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	return resp, nil
}

func decodeResponse(raw string) (*Response, error) {
	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, err
	}
	if err := schema.Validate(doc); err != nil {
		return nil, err
	}
	var resp Response
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, err
	}
	if resp.PersonalitySignal != nil && resp.PersonalitySignal.Confidence == 0 {
		resp.PersonalitySignal.Confidence = 5
	}
	return &resp, nil
}

// StripFences removes a surrounding markdown code fence.
func StripFences(text string) string {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if i := strings.IndexByte(s, '\n'); i >= 0 && !strings.ContainsAny(s[:i], "{[") {
			s = s[i+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

// Repair fixes the usual ways generated JSON goes wrong: prose before the
// document, trailing commas, unterminated strings and unbalanced brackets.
// Closers that match nothing are dropped; missing ones are appended.
func Repair(text string) string {
	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return text
	}
	var (
		out      bytes.Buffer
		stack    []byte
		inString bool
		escaped  bool
	)
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			out.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
			out.WriteByte(c)
		case '{', '[':
			stack = append(stack, c)
			out.WriteByte(c)
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != opener(c) {
				continue
			}
			stack = stack[:len(stack)-1]
			trimTrailingComma(&out)
			out.WriteByte(c)
			if len(stack) == 0 {
				return out.String()
			}
		default:
			out.WriteByte(c)
		}
	}
	if inString {
		if escaped {
			out.Truncate(out.Len() - 1)
		}
		out.WriteByte('"')
	}
	trimTrailingComma(&out)
	if b := out.Bytes(); len(b) > 0 && b[len(b)-1] == ':' {
		out.WriteString("null")
	}
	for i := len(stack) - 1; i >= 0; i-- {
		trimTrailingComma(&out)
		out.WriteByte(closer(stack[i]))
	}
	return out.String()
}

func opener(c byte) byte {
	if c == '}' {
		return '{'
	}
	return '['
}

func closer(c byte) byte {
	if c == '{' {
		return '}'
	}
	return ']'
}

func trimTrailingComma(out *bytes.Buffer) {
	b := bytes.TrimRight(out.Bytes(), " \t\r\n")
	b = bytes.TrimSuffix(b, []byte(","))
	out.Truncate(len(bytes.TrimRight(b, " \t\r\n")))
}

// Package command classifies raw player text into structured commands.
//
// Classification walks a priority-ordered grammar table and stops at the
// first rule whose pattern matches. Specific phrasings therefore have to be
// listed before the general rules that would also accept them ("go back"
// before "go <direction>", "put down" before "put X in Y"); every rule
// carries example inputs and the package tests assert that each example is
// claimed by its own rule, so a shadowed rule fails the build.
package command

import (
	"regexp"
	"strings"
	"unicode"
)

// Type is the kind of a command.
type Type string

const (
	Unclassified Type = "unclassified"
	Help         Type = "help"
	Inventory    Type = "inventory"
	Skills       Type = "skills"
	Status       Type = "status"
	Wait         Type = "wait"
	GoBack       Type = "go_back"
	Travel       Type = "travel"
	Disembark    Type = "disembark"
	Enter        Type = "enter"
	Move         Type = "move"
	Look         Type = "look"
	Search       Type = "search"
	Examine      Type = "examine"
	Take         Type = "take"
	Drop         Type = "drop"
	Put          Type = "put"
	Open         Type = "open"
	Close        Type = "close"
	Ask          Type = "ask"
	Talk         Type = "talk"
	Use          Type = "use"
)

// Command is one classified player input.
type Command struct {
	Type     Type
	Target   string
	Modifier string
	Raw      string
}

// Rule maps a pattern to a command type. Target and Modifier are submatch
// indexes; zero means the rule does not capture that field.
type Rule struct {
	Type     Type
	Pattern  *regexp.Regexp
	Target   int
	Modifier int
	Examples []string
}

func rule(t Type, pattern string, target, modifier int, examples ...string) Rule {
	return Rule{Type: t, Pattern: regexp.MustCompile(`^(?:` + pattern + `)$`), Target: target, Modifier: modifier, Examples: examples}
}

const directionWords = `north|south|east|west|up|down|upstairs|downstairs|n|s|e|w|u|d`

// Grammar is the default rule table, highest priority first.
var Grammar = []Rule{
	rule(Help, `help|\?|commands`, 0, 0, "help", "?"),
	rule(Inventory, `i|inv|inventory|check inventory|what am i carrying`, 0, 0, "i", "inventory", "what am I carrying?"),
	rule(Skills, `skills|abilities|show skills`, 0, 0, "skills", "abilities"),
	rule(Status, `status|score|health`, 0, 0, "score", "status"),
	rule(Wait, `wait|z|rest`, 0, 0, "wait", "z"),
	rule(GoBack, `go back|return|travel back|sail back`, 0, 0, "go back", "return"),
	rule(Travel, `(?:travel|sail|row|fly|drive|ride) (?:to|towards?) (.+)`, 1, 0, "sail to the islet", "travel to Courtyard"),
	rule(Disembark, `disembark|get out|get off|leave (?:the )?(?:boat|vehicle|ship)`, 0, 0, "disembark", "get out"),
	rule(Enter, `(?:enter|board|step into|go through|go into|climb into) (.+)`, 1, 0, "enter the portal", "board rowboat", "go through shimmering gate"),
	rule(Move, `(?:(?:go|walk|run|move|head|climb|crawl) )?(`+directionWords+`)`, 1, 0, "north", "go east", "d", "climb up"),
	rule(Look, `l|look|look around`, 0, 0, "look", "l", "look around"),
	rule(Search, `search|search (?:the )?(?:room|area)|look for (?:hidden )?(?:exits|doors|passages)`, 0, 0, "search", "search the room", "look for hidden exits"),
	rule(Examine, `(?:examine|x|inspect|look at|read|check|study) (.+)`, 1, 0, "examine the rusty key", "look at chest", "x lamp"),
	rule(Take, `(?:take|get|grab|pick up|collect) (.+)`, 1, 0, "take key", "pick up the lamp", "get coin"),
	rule(Drop, `(?:drop|discard|put down|set down) (.+)`, 1, 0, "drop key", "put down the lamp"),
	rule(Put, `(?:put|place|insert|stash) (.+?) (?:in|into|inside|on|onto) (.+)`, 1, 2, "put the lamp in the chest", "place key on table"),
	rule(Open, `open (.+)`, 1, 0, "open chest"),
	rule(Close, `(?:close|shut) (.+)`, 1, 0, "close the chest", "shut door"),
	rule(Ask, `ask (.+?) about (.+)`, 1, 2, "ask the guard about the key"),
	rule(Talk, `(?:talk|speak|chat) (?:to|with) (.+)`, 1, 0, "talk to the prisoner", "speak with guard"),
	rule(Use, `use (.+?)(?: (?:on|with) (.+))?`, 1, 2, "use key on door", "use lamp"),
}

var articles = map[string]bool{"the": true, "a": true, "an": true, "some": true, "my": true}

// Interpreter classifies input with a grammar table.
type Interpreter struct {
	rules []Rule
}

// NewInterpreter returns an interpreter over rules, or over Grammar when
// rules is empty.
func NewInterpreter(rules ...Rule) *Interpreter {
	if len(rules) == 0 {
		rules = Grammar
	}
	return &Interpreter{rules: rules}
}

// Rules returns the grammar in priority order.
func (i *Interpreter) Rules() []Rule {
	return i.rules
}

// Interpret classifies input. Text no rule accepts is Unclassified and keeps
// the normalized text as its target.
func (i *Interpreter) Interpret(input string) Command {
	norm := Normalize(input)
	for _, r := range i.rules {
		m := r.Pattern.FindStringSubmatch(norm)
		if m == nil {
			continue
		}
		cmd := Command{Type: r.Type, Raw: input}
		if r.Target > 0 && r.Target < len(m) {
			cmd.Target = stripArticles(m[r.Target])
		}
		if r.Modifier > 0 && r.Modifier < len(m) {
			cmd.Modifier = stripArticles(m[r.Modifier])
		}
		return cmd
	}
	return Command{Type: Unclassified, Target: norm, Raw: input}
}

// Normalize lowercases input, collapses whitespace and trims trailing
// punctuation. A lone "?" is kept.
func Normalize(input string) string {
	s := strings.ToLower(strings.Join(strings.Fields(input), " "))
	if s == "?" {
		return s
	}
	return strings.TrimRightFunc(s, unicode.IsPunct)
}

func stripArticles(s string) string {
	words := strings.Fields(s)
	for len(words) > 1 && articles[words[0]] {
		words = words[1:]
	}
	return strings.Join(words, " ")
}

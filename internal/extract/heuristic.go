package extract

import (
	"context"
	"regexp"
	"strings"

	"github.com/samber/lo"

	"github.com/rcliao/lore-memory/internal/chunker"
	"github.com/rcliao/lore-memory/internal/model"
)

// HeuristicVersion changes whenever a rule change can alter classification output.
const HeuristicVersion = "heuristic-2"

// DefaultMaxCandidates bounds candidates per classified text.
const DefaultMaxCandidates = 12

// Options tunes the heuristic classifier.
type Options struct {
	MaxCandidates int
}

// Heuristic classifies sentences with ordered pattern rules per memory type.
// Rules run in a fixed order over sentences in text order, so output is
// deterministic for a given HeuristicVersion.
type Heuristic struct {
	opts Options
}

// NewHeuristic returns the default rule-based classifier.
func NewHeuristic(opts Options) *Heuristic {
	if opts.MaxCandidates <= 0 {
		opts.MaxCandidates = DefaultMaxCandidates
	}
	return &Heuristic{opts: opts}
}

// Version identifies the rule set.
func (h *Heuristic) Version() string { return HeuristicVersion }

const properName = `([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*)`

var (
	quoteRe   = regexp.MustCompile(`["“]([^"”]{2,})["”]`)
	speechRe  = regexp.MustCompile(`(?i)\b(?:says|said|asks|asked|replies|replied|whispers|whispered|shouts|shouted|cries|cried|answers|answered|mutters|muttered|exclaims|exclaimed|calls|called)\b`)
	speakerRe = regexp.MustCompile(`\b(?:said|asked|replied|whispered|shouted|cried|answered|muttered|exclaimed|called)\s+` + properName +
		`|` + properName + `\s+(?:says|said|asks|asked|replies|replied|whispers|whispered|shouts|shouted|cries|cried|answered|muttered|exclaimed|calls|called)\b`)

	meetRe     = regexp.MustCompile(`(?i:\b(?:meet|meets|met|see|sees|saw|encounter|encounters|encountered))\s+(?:(?i:a|an|the)\s+)?` + properName)
	introRe    = regexp.MustCompile(`^` + properName + `\s+(?:is|was|appears to be|seems to be)\s+(?:a|an|the)\s+(.+?)[.!?]*$`)
	npcTagRe   = regexp.MustCompile(`^(?i:npc|character):\s*` + properName + `\s*(?:[:\-–]\s*(.*?))?[.!?]*$`)
	moveRe     = regexp.MustCompile(`(?i:\b(?:go to|goes to|went to|enter|enters|entered|arrive at|arrives at|arrived at|arrive in|arrived in|reach|reaches|reached|travel to|travels to|traveled to|travelled to))\s+(?:(?i:the)\s+)?` + properName)
	placeTagRe = regexp.MustCompile(`^(?i:location|place):\s*` + properName + `\s*(?:[:\-–]\s*(.*?))?[.!?]*$`)
	placeRe    = regexp.MustCompile(properName + `\s+(village|town|city|forest|woods|mountain|mountains|castle|tavern|inn|palace|river|lake|keep|temple)\b` +
		`|\b(village|town|city|forest|castle|kingdom|realm)\s+of\s+` + properName)
	acquireRe = regexp.MustCompile(`(?i:\b(?:find|finds|found|discover|discovers|discovered|pick up|picks up|picked up|take|takes|took|wield|wields|wielded|obtain|obtains|obtained|receive|receives|received))\s+(?:(?i:a|an|the|his|her|their|my|your)\s+)?` +
		`(` + properName[1:len(properName)-1] + `|(?:[a-z]+\s+){0,2}` + itemNouns + `)`)
	itemTagRe  = regexp.MustCompile(`^(?i:item|object):\s*([A-Za-z][A-Za-z ]*?)\s*(?:[:\-–]\s*(.*?))?[.!?]*$`)
	eventRe    = regexp.MustCompile(`(?i)\b(?:suddenly|meanwhile|unexpectedly|afterwards|without warning|the next day|at last)\b|^(?i:then)\b`)
	eventTagRe = regexp.MustCompile(`^(?i:event|incident):\s*(.+?)[.!?]*$`)

	worldTagRe = regexp.MustCompile(`^(?i:world):\s*([A-Za-z][A-Za-z0-9_ ]*?)\s*[=:]\s*(.+?)\.?$`)
	clockRe    = regexp.MustCompile(`(?i)\b(?:it is|it's|it was|as)\s+(?:now\s+)?(morning|midday|noon|afternoon|evening|night|dawn|dusk)\b|\b(?:the\s+)?(?:sun\s+rises|sun\s+sets|night\s+falls|dawn\s+breaks)\b`)
	weatherRe  = regexp.MustCompile(`(?i)\b(?:it (?:is|was|begins to|starts to) (?:now\s+)?)(raining|snowing|storming|foggy|misty|sunny|clear|windy|cloudy|rain|snow|storm)\b|\b(?:a|the)\s+(storm|blizzard|thunderstorm|fog|mist|rain|snow)\s+(?:rolls in|sets in|begins|starts|breaks|descends|falls)\b`)
	statusRe   = regexp.MustCompile(properName + `\s+is\s+now\s+((?:under siege|at war|at peace|in ruins|on fire|abandoned|calm|peaceful|flooded|besieged|liberated|occupied|destroyed|safe|cursed)\b)`)
)

const itemNouns = `(?:sword|blade|dagger|axe|bow|staff|wand|shield|amulet|ring|key|map|scroll|potion|book|tome|gem|crown|chest|lantern|armor|armour|cloak|coin|coins|orb|relic|artifact|artefact|talisman|helm|spear|hammer)`

var (
	stopNames = map[string]bool{
		"The": true, "A": true, "An": true, "You": true, "It": true, "He": true, "She": true,
		"They": true, "We": true, "I": true, "This": true, "That": true, "There": true, "Here": true,
		"His": true, "Her": true, "Their": true, "My": true, "Your": true, "Our": true,
		"Then": true, "Suddenly": true, "Meanwhile": true, "What": true, "Who": true,
		"Where": true, "When": true, "Why": true, "How": true,
	}
	placeWords = []string{"village", "town", "city", "forest", "woods", "mountain", "castle", "tavern", "inn",
		"palace", "river", "lake", "valley", "realm", "kingdom", "keep", "temple", "port", "harbor", "fortress", "ruins"}
	itemWords = []string{"sword", "blade", "dagger", "axe", "bow", "staff", "wand", "shield", "amulet", "ring",
		"key", "map", "scroll", "potion", "book", "tome", "gem", "crown", "relic", "artifact", "talisman", "weapon"}
	headBreaks = map[string]bool{
		"from": true, "of": true, "in": true, "at": true, "with": true, "who": true, "that": true,
		"which": true, "on": true, "near": true, "by": true, "to": true, "and": true,
	}
	timeAliases = map[string]string{
		"noon": "midday", "dusk": "evening",
		"sun rises": "dawn", "sun sets": "evening", "night falls": "night", "dawn breaks": "dawn",
	}
	weatherAliases = map[string]string{
		"raining": "rain", "snowing": "snow", "storming": "storm", "thunderstorm": "storm",
		"misty": "mist", "foggy": "fog", "blizzard": "snow",
	}
)

// Classify splits text into sentences and applies every rule to each.
func (h *Heuristic) Classify(ctx context.Context, text string) (Classification, error) {
	var out Classification
	for _, span := range chunker.Sentences(text, chunker.DefaultOptions()) {
		if err := ctx.Err(); err != nil {
			return Classification{}, err
		}
		s := span.Text
		out.World = append(out.World, worldDeltas(s)...)
		if worldTagRe.MatchString(s) {
			continue
		}
		out.Candidates = append(out.Candidates, classifySentence(s)...)
	}

	out.Candidates = lo.UniqBy(out.Candidates, func(c Candidate) string {
		return string(c.Type) + "\x00" + strings.ToLower(c.Content)
	})
	if len(out.Candidates) > h.opts.MaxCandidates {
		out.Candidates = out.Candidates[:h.opts.MaxCandidates]
	}
	out.World = lo.UniqBy(out.World, func(d WorldDelta) string { return d.Key + "\x00" + d.Value })
	return out, nil
}

func classifySentence(s string) []Candidate {
	var out []Candidate
	add := func(t model.MemoryType, name, content string) {
		out = append(out, Candidate{Type: t, Name: strings.TrimSpace(name), Content: strings.TrimSpace(content)})
	}

	// Explicit tags win over every other rule for the sentence.
	if m := npcTagRe.FindStringSubmatch(s); m != nil {
		add(model.TypeCharacter, m[1], tagged(m[1], m[2]))
		return out
	}
	if m := placeTagRe.FindStringSubmatch(s); m != nil {
		add(model.TypeLocation, m[1], tagged(m[1], m[2]))
		return out
	}
	if m := itemTagRe.FindStringSubmatch(s); m != nil {
		add(model.TypeItem, m[1], tagged(m[1], m[2]))
		return out
	}
	if m := eventTagRe.FindStringSubmatch(s); m != nil {
		add(model.TypeEvent, shortName(m[1]), m[1])
		return out
	}

	// Dialogue
	if quoteRe.MatchString(s) && speechRe.MatchString(s) {
		var speaker string
		if m := speakerRe.FindStringSubmatch(s); m != nil {
			speaker = m[1]
			if speaker == "" {
				speaker = m[2]
			}
			if stopNames[firstWord(speaker)] {
				speaker = ""
			}
		}
		add(model.TypeDialogue, speaker, s)
		return out
	}

	// Character
	if m := meetRe.FindStringSubmatch(s); m != nil && !stopNames[firstWord(m[1])] {
		add(model.TypeCharacter, m[1], s)
	}
	if m := introRe.FindStringSubmatch(s); m != nil && !stopNames[firstWord(m[1])] {
		add(describe(m[2]), m[1], s)
	}

	// Location
	locFound := false
	if m := moveRe.FindStringSubmatch(s); m != nil && !stopNames[firstWord(m[1])] {
		add(model.TypeLocation, m[1], s)
		locFound = true
	}
	if !locFound {
		if m := placeRe.FindStringSubmatch(s); m != nil {
			switch {
			case m[1] != "" && !stopNames[firstWord(m[1])]:
				add(model.TypeLocation, m[1]+" "+capitalize(m[2]), s)
			case m[4] != "" && !stopNames[firstWord(m[4])]:
				add(model.TypeLocation, m[4], s)
			}
		}
	}

	// Item
	if m := acquireRe.FindStringSubmatch(s); m != nil && !stopNames[firstWord(m[1])] {
		add(model.TypeItem, m[1], s)
	}

	// Event
	if eventRe.MatchString(s) {
		add(model.TypeEvent, shortName(s), s)
	}

	return out
}

// describe picks the memory type for "<Name> is a <description>" from the
// head of the description, up to the first relative or prepositional word.
func describe(desc string) model.MemoryType {
	for _, w := range strings.Fields(strings.ToLower(desc)) {
		w = strings.Trim(w, ",.;:!?")
		if headBreaks[w] {
			break
		}
		if lo.Contains(placeWords, w) {
			return model.TypeLocation
		}
		if lo.Contains(itemWords, w) {
			return model.TypeItem
		}
	}
	return model.TypeCharacter
}

func worldDeltas(s string) []WorldDelta {
	var out []WorldDelta
	if m := worldTagRe.FindStringSubmatch(s); m != nil {
		key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(m[1])), " ", "_")
		out = append(out, WorldDelta{Key: key, Value: strings.TrimSpace(m[2])})
		return out
	}
	if m := clockRe.FindStringSubmatch(s); m != nil {
		v := strings.ToLower(m[1])
		if v == "" {
			v = strings.Join(strings.Fields(strings.ToLower(strings.TrimPrefix(strings.ToLower(m[0]), "the "))), " ")
		}
		if alias, ok := timeAliases[v]; ok {
			v = alias
		}
		out = append(out, WorldDelta{Key: "current_time", Value: v})
	}
	if m := weatherRe.FindStringSubmatch(s); m != nil {
		v := strings.ToLower(m[1])
		if v == "" {
			v = strings.ToLower(m[2])
		}
		if alias, ok := weatherAliases[v]; ok {
			v = alias
		}
		out = append(out, WorldDelta{Key: "weather", Value: v})
	}
	for _, m := range statusRe.FindAllStringSubmatch(s, -1) {
		if stopNames[firstWord(m[1])] {
			continue
		}
		key := strings.ReplaceAll(strings.ToLower(m[1]), " ", "_") + "_status"
		out = append(out, WorldDelta{Key: key, Value: strings.ToLower(m[2])})
	}
	return out
}

func tagged(name, desc string) string {
	desc = strings.TrimSpace(desc)
	if desc == "" {
		return name
	}
	return name + ": " + desc
}

func shortName(s string) string {
	r := []rune(s)
	if len(r) > 50 {
		return string(r[:50]) + "..."
	}
	return s
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func firstWord(s string) string {
	if i := strings.IndexByte(s, ' '); i >= 0 {
		return s[:i]
	}
	return s
}

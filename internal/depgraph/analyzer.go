package depgraph

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/ByBren-LLC/bigroom/internal/backlog"
	"github.com/ByBren-LLC/bigroom/internal/types"
)

// Confidence bases per evidence class. Extra evidence on the same pair
// adds evidenceBoost per hit, capped at 1.0.
const (
	patternConfidence = 0.90
	keywordConfidence = 0.75
	mentionConfidence = 0.50
	evidenceBoost     = 0.05

	// inheritedDecay discounts a propagated edge against its origin.
	inheritedDecay = 0.85

	// cueWindow is how far back from a key mention the keyword scan
	// looks for a dependency cue, in bytes.
	cueWindow = 48
)

// PatternTrigger is a configurable detection pattern. Expr is a regular
// expression template where {key} is replaced with the quoted target
// key; a match produces an edge of the given type and strength.
type PatternTrigger struct {
	Expr     string         `json:"expr" yaml:"expr" mapstructure:"expr"`
	Type     DependencyType `json:"type" yaml:"type" mapstructure:"type"`
	Strength Strength       `json:"strength" yaml:"strength" mapstructure:"strength"`
}

// AnalyzerConfig controls relationship detection.
type AnalyzerConfig struct {
	// TechnicalKeywords are cues that mark hard technical coupling.
	TechnicalKeywords []string `json:"technical_keywords" yaml:"technical_keywords" mapstructure:"technical_keywords"`

	// BusinessKeywords are cues that mark soft business sequencing.
	BusinessKeywords []string `json:"business_keywords" yaml:"business_keywords" mapstructure:"business_keywords"`

	// PatternTriggers are regular-expression detections, tried before
	// plain keyword cues.
	PatternTriggers []PatternTrigger `json:"pattern_triggers" yaml:"pattern_triggers" mapstructure:"pattern_triggers"`

	// ConfidenceThreshold discards detections scoring below it.
	ConfidenceThreshold float64 `json:"confidence_threshold" yaml:"confidence_threshold" mapstructure:"confidence_threshold" validate:"min=0,max=1"`

	// InheritParentDependencies propagates a dependency on a parent
	// item to that parent's descendants as inherited edges.
	InheritParentDependencies bool `json:"inherit_parent_dependencies" yaml:"inherit_parent_dependencies" mapstructure:"inherit_parent_dependencies"`

	// MaxTraversalDepth bounds inheritance propagation depth.
	// Zero means unbounded.
	MaxTraversalDepth int `json:"max_traversal_depth" yaml:"max_traversal_depth" mapstructure:"max_traversal_depth" validate:"min=0"`

	// Manual holds caller-supplied edges, merged at their stated
	// confidence and never dropped by cycle breaking.
	Manual []Relationship `json:"-" yaml:"-" mapstructure:"-"`
}

// DefaultAnalyzerConfig returns the stock detection configuration.
func DefaultAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{
		TechnicalKeywords: []string{
			"depends on", "requires", "blocked by", "blocks",
			"waiting on", "waiting for", "needs",
		},
		BusinessKeywords: []string{
			"after", "before", "follows", "enables", "unlocks",
			"supports", "conflicts with", "incompatible with",
		},
		PatternTriggers: []PatternTrigger{
			{Expr: `(?:depends\s+on|blocked\s+by|requires|waiting\s+(?:on|for))\s+(?:the\s+)?{key}`, Type: TypeRequires, Strength: StrengthHard},
			{Expr: `{key}\s+must\s+(?:land|finish|complete|ship)\s+first`, Type: TypeRequires, Strength: StrengthHard},
			{Expr: `(?:gates|is\s+a\s+prerequisite\s+(?:for|of))\s+{key}`, Type: TypeBlocks, Strength: StrengthHard},
			{Expr: `(?:builds\s+on|extends)\s+{key}`, Type: TypeRequires, Strength: StrengthSoft},
		},
		ConfidenceThreshold:       0.5,
		InheritParentDependencies: true,
		MaxTraversalDepth:         3,
	}
}

// cueTypes maps known dependency cues to the relationship type they
// imply when found immediately before a key mention. The scanned item
// is always the source, so inverse phrasing ("blocked by") reads as a
// requires edge. Cues configured but not listed here default to requires.
var cueTypes = map[string]DependencyType{
	"depends on":        TypeRequires,
	"requires":          TypeRequires,
	"blocked by":        TypeRequires,
	"waiting on":        TypeRequires,
	"waiting for":       TypeRequires,
	"needs":             TypeRequires,
	"after":             TypeRequires,
	"follows":           TypeRequires,
	"blocks":            TypeBlocks,
	"before":            TypeBlocks,
	"enables":           TypeEnables,
	"unlocks":           TypeEnables,
	"supports":          TypeEnables,
	"conflicts with":    TypeConflicts,
	"incompatible with": TypeConflicts,
}

// Analyzer detects dependency relationships between work items and
// assembles them into a Graph.
type Analyzer struct {
	cfg    AnalyzerConfig
	logger *slog.Logger

	// Clock supplies run timestamps; replaceable in tests.
	Clock func() time.Time
}

// NewAnalyzer creates an analyzer with the given configuration.
// A nil logger falls back to slog.Default.
func NewAnalyzer(cfg AnalyzerConfig, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		cfg:    cfg,
		logger: logger,
		Clock:  time.Now,
	}
}

// compiledPattern is a pattern trigger bound to one target key.
type compiledPattern struct {
	re       *regexp.Regexp
	typ      DependencyType
	strength Strength
}

// Analyze scans every ordered pair of items for dependency cues and
// returns the assembled graph. Detection itself never fails; an empty
// edge set is a valid result. Errors come only from malformed input:
// invalid items, duplicate keys, or manual edges referencing keys
// outside the scope.
//
// After edge construction the analyzer detects cycles, breaks critical
// ones by dropping the lowest-confidence detected edge per cycle, and
// computes the critical path over the surviving hard constraint edges.
// Cycles made only of manual edges cannot be auto-broken and are left
// for the allocator to refuse.
func (a *Analyzer) Analyze(ctx context.Context, items []backlog.WorkItem) (*Graph, error) {
	start := a.Clock()

	index, err := backlog.NewIndex(items)
	if err != nil {
		return nil, err
	}

	detectedAt := start.UTC()
	pool := a.scanPairs(ctx, index, detectedAt)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	manual, err := a.manualEdges(index, detectedAt)
	if err != nil {
		return nil, err
	}
	pool = append(pool, manual...)

	if a.cfg.InheritParentDependencies {
		pool = append(pool, a.inheritEdges(pool, index, detectedAt)...)
	}

	edges := dedupeByPair(pool)

	nodes := index.Keys()
	g := NewGraph(nodes, edges)
	g.AnalyzedAt = detectedAt

	a.resolveCycles(g)

	points := make(map[string]int, index.Len())
	for _, item := range index.Items() {
		points[item.Key] = item.Points
	}
	g.setCriticalPath(computeCriticalPath(nodes, g.ConstraintEdges(), points))

	a.logger.Debug("dependency analysis complete",
		"items", len(items),
		"edges", len(g.Edges),
		"cycles", len(g.Cycles),
		"dropped", len(g.Dropped),
		"critical_path", len(g.CriticalPath),
		"elapsed", a.Clock().Sub(start))

	return g, nil
}

// scanPairs runs keyword and pattern detection over every ordered pair.
func (a *Analyzer) scanPairs(ctx context.Context, index *backlog.Index, detectedAt time.Time) []Relationship {
	items := index.Items()

	texts := make(map[string]string, len(items))
	for _, item := range items {
		texts[item.Key] = strings.ToLower(item.SearchText())
	}

	patterns := make(map[string][]compiledPattern, len(items))
	for _, target := range items {
		patterns[target.Key] = a.compilePatterns(target.Key)
	}

	technical := lowerSet(a.cfg.TechnicalKeywords)
	cues := sortedCues(a.cfg.TechnicalKeywords, a.cfg.BusinessKeywords)

	var pool []Relationship
	for _, source := range items {
		if ctx.Err() != nil {
			return pool
		}
		text := texts[source.Key]
		for _, target := range items {
			if source.Key == target.Key {
				continue
			}
			rel, ok := a.scanPair(source, target, text, patterns[target.Key], technical, cues)
			if !ok {
				continue
			}
			rel.ID = types.NewID()
			rel.DetectedAt = detectedAt
			pool = append(pool, rel)
		}
	}
	return pool
}

// scanPair evaluates one ordered (source, target) pair. The strongest
// evidence class sets the edge type, strength, and base confidence;
// every further hit on the pair boosts confidence slightly.
func (a *Analyzer) scanPair(source, target backlog.WorkItem, text string, pats []compiledPattern,
	technical map[string]bool, cues []string) (Relationship, bool) {

	key := strings.ToLower(target.Key)
	mentions := keyMentions(text, key)

	patternHits := 0
	var firstPattern *compiledPattern
	var patternTrigger string
	for i := range pats {
		locs := pats[i].re.FindAllStringIndex(text, -1)
		if len(locs) == 0 {
			continue
		}
		patternHits += len(locs)
		if firstPattern == nil {
			firstPattern = &pats[i]
			patternTrigger = text[locs[0][0]:locs[0][1]]
		}
	}

	keywordHits := 0
	var bestCue string
	for _, pos := range keyMentionOffsets(text, key) {
		cue := nearestCue(text, pos, cues)
		if cue == "" {
			continue
		}
		keywordHits++
		if bestCue == "" {
			bestCue = cue
		}
	}

	if mentions == 0 && patternHits == 0 {
		return Relationship{}, false
	}

	rel := Relationship{
		SourceKey: source.Key,
		TargetKey: target.Key,
	}

	var base float64
	var extras int
	switch {
	case patternHits > 0:
		base = patternConfidence
		extras = patternHits - 1 + keywordHits
		rel.Method = MethodPattern
		rel.Type = firstPattern.typ
		rel.Strength = firstPattern.strength
		rel.Trigger = patternTrigger
	case keywordHits > 0:
		base = keywordConfidence
		extras = keywordHits - 1 + (mentions - keywordHits)
		rel.Method = MethodKeyword
		rel.Type = cueType(bestCue)
		if technical[bestCue] {
			rel.Strength = StrengthHard
		} else {
			rel.Strength = StrengthSoft
		}
		rel.Trigger = bestCue + " " + target.Key
	default:
		base = mentionConfidence
		extras = mentions - 1
		rel.Method = MethodKeyword
		rel.Type = TypeRelated
		rel.Strength = StrengthOptional
		rel.Trigger = target.Key
	}

	rel.Confidence = base + evidenceBoost*float64(extras)
	if rel.Confidence > 1 {
		rel.Confidence = 1
	}
	if rel.Confidence < a.cfg.ConfidenceThreshold {
		return Relationship{}, false
	}
	return rel, true
}

// compilePatterns binds the configured pattern triggers to one target
// key. Patterns that fail to compile are skipped; they are validated
// again, loudly, by the config layer.
func (a *Analyzer) compilePatterns(key string) []compiledPattern {
	quoted := regexp.QuoteMeta(strings.ToLower(key)) + `\b`
	out := make([]compiledPattern, 0, len(a.cfg.PatternTriggers))
	for _, p := range a.cfg.PatternTriggers {
		expr := strings.ReplaceAll(p.Expr, "{key}", quoted)
		re, err := regexp.Compile(expr)
		if err != nil {
			a.logger.Warn("skipping unparsable pattern trigger", "expr", p.Expr, "error", err)
			continue
		}
		out = append(out, compiledPattern{re: re, typ: p.Type, strength: p.Strength})
	}
	return out
}

// manualEdges validates and stamps the caller-supplied relationships.
func (a *Analyzer) manualEdges(index *backlog.Index, detectedAt time.Time) ([]Relationship, error) {
	out := make([]Relationship, 0, len(a.cfg.Manual))
	for _, m := range a.cfg.Manual {
		m.Method = MethodManual
		if m.Confidence == 0 {
			m.Confidence = 1
		}
		if m.ID.IsZero() {
			m.ID = types.NewID()
		}
		m.DetectedAt = detectedAt

		if err := m.Validate(); err != nil {
			return nil, types.WrapFatalError(types.VALIDATION_FAILED, "manual relationship", err)
		}
		if !index.Contains(m.SourceKey) {
			return nil, types.NewFatalError(types.UNKNOWN_EDGE_TARGET,
				fmt.Sprintf("manual relationship source %s is not in scope", m.SourceKey)).WithItem(m.SourceKey)
		}
		if !index.Contains(m.TargetKey) {
			return nil, types.NewFatalError(types.UNKNOWN_EDGE_TARGET,
				fmt.Sprintf("manual relationship target %s is not in scope", m.TargetKey)).WithItem(m.TargetKey)
		}
		out = append(out, m)
	}
	return out, nil
}

// inheritEdges propagates each dependency on a parent item to that
// parent's descendants, bounded by MaxTraversalDepth. Propagated edges
// face the same confidence threshold as direct detections.
func (a *Analyzer) inheritEdges(pool []Relationship, index *backlog.Index, detectedAt time.Time) []Relationship {
	var out []Relationship
	for _, e := range pool {
		if e.Method == MethodInherited {
			continue
		}
		if e.Confidence*inheritedDecay < a.cfg.ConfidenceThreshold {
			continue
		}
		descendants := index.Descendants(e.TargetKey, a.cfg.MaxTraversalDepth)
		for _, d := range descendants {
			if d == e.SourceKey {
				continue
			}
			out = append(out, Relationship{
				ID:         types.NewID(),
				SourceKey:  e.SourceKey,
				TargetKey:  d,
				Type:       e.Type,
				Strength:   e.Strength,
				Confidence: e.Confidence * inheritedDecay,
				Method:     MethodInherited,
				Trigger:    "inherited from " + e.TargetKey,
				DetectedAt: detectedAt,
			})
		}
	}
	return out
}

// dedupeByPair keeps a single relationship per ordered pair: highest
// confidence wins, ties fall to the more trusted detection method, then
// to the lexically smallest type. Output is sorted by source then
// target key so downstream traversals are deterministic.
func dedupeByPair(pool []Relationship) []Relationship {
	best := make(map[string]Relationship, len(pool))
	for _, r := range pool {
		cur, ok := best[r.pairKey()]
		if !ok || beats(r, cur) {
			best[r.pairKey()] = r
		}
	}

	out := make([]Relationship, 0, len(best))
	for _, r := range best {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SourceKey != out[j].SourceKey {
			return out[i].SourceKey < out[j].SourceKey
		}
		return out[i].TargetKey < out[j].TargetKey
	})
	return out
}

func beats(r, cur Relationship) bool {
	if r.Confidence != cur.Confidence {
		return r.Confidence > cur.Confidence
	}
	if methodRank(r.Method) != methodRank(cur.Method) {
		return methodRank(r.Method) > methodRank(cur.Method)
	}
	return r.Type < cur.Type
}

// resolveCycles detects cycles over every directed edge, breaks the
// critical ones, then keeps breaking until the hard constraint subgraph
// is acyclic or only unbreakable manual cycles remain.
func (a *Analyzer) resolveCycles(g *Graph) {
	cycles := detectCycles(g.Nodes, g.Edges)
	for i := range cycles {
		if cycles[i].Severity != SeverityCritical {
			continue
		}
		if be := chooseBreakEdge(cycles[i]); be != nil {
			g.markDropped([]Relationship{*be})
			cycles[i].BrokenEdge = be
		}
	}
	g.Cycles = cycles

	// Parallel edges can hide additional hard cycles from a single DFS
	// pass. Re-detect on the constraint subgraph until stable.
	for range g.Edges {
		remaining := detectCycles(g.Nodes, g.ConstraintEdges())
		if len(remaining) == 0 {
			return
		}
		progress := false
		for _, c := range remaining {
			if be := chooseBreakEdge(c); be != nil {
				g.markDropped([]Relationship{*be})
				c.BrokenEdge = be
				progress = true
			}
			g.Cycles = appendCycleIfNew(g.Cycles, c)
		}
		if !progress {
			a.logger.Warn("unbreakable dependency cycle remains",
				"cycles", len(remaining))
			return
		}
	}
}

// appendCycleIfNew adds c unless an equivalent cycle is already listed.
func appendCycleIfNew(cycles []Cycle, c Cycle) []Cycle {
	sig := cycleSignature(c)
	for i := range cycles {
		if cycleSignature(cycles[i]) == sig {
			if cycles[i].BrokenEdge == nil && c.BrokenEdge != nil {
				cycles[i].BrokenEdge = c.BrokenEdge
			}
			return cycles
		}
	}
	return append(cycles, c)
}

func cycleSignature(c Cycle) string {
	parts := make([]string, 0, len(c.Keys)+len(c.Edges))
	parts = append(parts, c.Keys...)
	for _, e := range c.Edges {
		parts = append(parts, e.identity())
	}
	return strings.Join(parts, "\x00")
}

// cueType resolves a cue phrase to a relationship type. Configured cues
// without a known reading default to requires, the conservative choice
// for scheduling.
func cueType(cue string) DependencyType {
	if t, ok := cueTypes[cue]; ok {
		return t
	}
	return TypeRequires
}

// nearestCue finds the configured cue closest before the key mention at
// pos, within the scan window. The cue whose match ends nearest the key
// wins; at equal distance the longer, then lexically smaller cue does,
// so scanning stays deterministic whatever the configured lists hold.
func nearestCue(text string, pos int, cues []string) string {
	start := pos - cueWindow
	if start < 0 {
		start = 0
	}
	window := text[start:pos]

	best := ""
	bestEnd := -1
	for _, cue := range cues {
		i := strings.LastIndex(window, cue)
		if i < 0 {
			continue
		}
		end := i + len(cue)
		if end > bestEnd ||
			(end == bestEnd && len(cue) > len(best)) ||
			(end == bestEnd && len(cue) == len(best) && cue < best) {
			best = cue
			bestEnd = end
		}
	}
	return best
}

// keyMentions counts boundary-checked occurrences of key in text.
func keyMentions(text, key string) int {
	return len(keyMentionOffsets(text, key))
}

// keyMentionOffsets returns the byte offsets of boundary-checked
// occurrences of key in text. Boundary checking stops "WTFB-1" from
// matching inside "WTFB-12".
func keyMentionOffsets(text, key string) []int {
	if key == "" {
		return nil
	}
	var offsets []int
	for start := 0; ; {
		i := strings.Index(text[start:], key)
		if i < 0 {
			break
		}
		pos := start + i
		if isKeyBoundary(text, pos, len(key)) {
			offsets = append(offsets, pos)
		}
		start = pos + len(key)
	}
	return offsets
}

func isKeyBoundary(text string, pos, n int) bool {
	if pos > 0 && isWordByte(text[pos-1]) {
		return false
	}
	if end := pos + n; end < len(text) && (isWordByte(text[end]) || text[end] == '-') {
		return false
	}
	return true
}

func isWordByte(b byte) bool {
	return b == '_' || b == '-' ||
		('0' <= b && b <= '9') ||
		('a' <= b && b <= 'z') ||
		('A' <= b && b <= 'Z')
}

func lowerSet(words []string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[strings.ToLower(w)] = true
	}
	return set
}

// sortedCues merges the configured keyword lists into one lowercase,
// sorted, deduplicated slice.
func sortedCues(lists ...[]string) []string {
	set := make(map[string]bool)
	for _, list := range lists {
		for _, w := range list {
			set[strings.ToLower(w)] = true
		}
	}
	out := make([]string, 0, len(set))
	for w := range set {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

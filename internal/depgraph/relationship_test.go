package depgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRelationshipValidate(t *testing.T) {
	valid := Relationship{
		SourceKey:  "A",
		TargetKey:  "B",
		Type:       TypeRequires,
		Strength:   StrengthHard,
		Confidence: 0.8,
		Method:     MethodKeyword,
	}

	tests := []struct {
		name    string
		mutate  func(*Relationship)
		wantErr bool
	}{
		{"valid", func(r *Relationship) {}, false},
		{"missing source", func(r *Relationship) { r.SourceKey = "" }, true},
		{"missing target", func(r *Relationship) { r.TargetKey = "" }, true},
		{"self reference", func(r *Relationship) { r.TargetKey = "A" }, true},
		{"bad type", func(r *Relationship) { r.Type = "depends" }, true},
		{"bad strength", func(r *Relationship) { r.Strength = "firm" }, true},
		{"bad method", func(r *Relationship) { r.Method = "guess" }, true},
		{"confidence above one", func(r *Relationship) { r.Confidence = 1.2 }, true},
		{"confidence below zero", func(r *Relationship) { r.Confidence = -0.1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid
			tt.mutate(&r)
			err := r.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConstrainsScheduling(t *testing.T) {
	tests := []struct {
		name     string
		typ      DependencyType
		strength Strength
		want     bool
	}{
		{"hard blocks", TypeBlocks, StrengthHard, true},
		{"hard requires", TypeRequires, StrengthHard, true},
		{"soft blocks", TypeBlocks, StrengthSoft, false},
		{"optional requires", TypeRequires, StrengthOptional, false},
		{"hard enables", TypeEnables, StrengthHard, false},
		{"hard related", TypeRelated, StrengthHard, false},
		{"hard conflicts", TypeConflicts, StrengthHard, false},
		{"hard blocked_by", TypeBlockedBy, StrengthHard, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Relationship{Type: tt.typ, Strength: tt.strength}
			assert.Equal(t, tt.want, r.ConstrainsScheduling())
		})
	}
}

func TestDirection(t *testing.T) {
	tests := []struct {
		typ      DependencyType
		wantPre  string
		wantDep  string
		directed bool
	}{
		{TypeBlocks, "A", "B", true},
		{TypeRequires, "B", "A", true},
		{TypeBlockedBy, "B", "A", true},
		{TypeEnables, "A", "B", true},
		{TypeRelated, "", "", false},
		{TypeConflicts, "", "", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			r := Relationship{SourceKey: "A", TargetKey: "B", Type: tt.typ}
			pre, dep, ok := r.Direction()
			assert.Equal(t, tt.directed, ok)
			assert.Equal(t, tt.wantPre, pre)
			assert.Equal(t, tt.wantDep, dep)
		})
	}
}

func TestMethodRank(t *testing.T) {
	assert.Greater(t, methodRank(MethodManual), methodRank(MethodSemantic))
	assert.Greater(t, methodRank(MethodSemantic), methodRank(MethodPattern))
	assert.Greater(t, methodRank(MethodPattern), methodRank(MethodKeyword))
	assert.Greater(t, methodRank(MethodKeyword), methodRank(MethodInherited))
}

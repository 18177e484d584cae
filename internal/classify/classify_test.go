package classify

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderdesk/internal"
)

func TestClassifyDefaults(t *testing.T) {
	c := New(DefaultRules())

	cases := []struct {
		label string
		want  Class
	}{
		{label: "纯衣看样", want: ClassSample},
		{label: "打样单", want: ClassSample},
		{label: "新订单", want: ClassBulk},
		{label: "续订单", want: ClassBulk},
		{label: "纯衣单", want: ClassBulk},
		{label: "改版续订", want: ClassBulk},
		{label: "未知类型", want: ClassUnclassified},
		{label: "", want: ClassUnclassified},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, c.Classify(tc.label), "label %q", tc.label)
	}
}

func TestClassifyExactMatchOnly(t *testing.T) {
	c := New(DefaultRules())

	// No trimming or normalization happens: near-misses stay unclassified.
	assert.Equal(t, ClassUnclassified, c.Classify("打样单 "))
	assert.Equal(t, ClassUnclassified, c.Classify(" 打样单"))
	assert.Equal(t, ClassUnclassified, c.Classify("打样"))
}

func TestClassKind(t *testing.T) {
	kind, ok := ClassSample.Kind()
	require.True(t, ok)
	assert.Equal(t, internal.KindSample, kind)

	kind, ok = ClassBulk.Kind()
	require.True(t, ok)
	assert.Equal(t, internal.KindBulk, kind)

	_, ok = ClassUnclassified.Kind()
	assert.False(t, ok)
}

func TestLabels(t *testing.T) {
	c := New(DefaultRules())

	assert.ElementsMatch(t, []string{"纯衣看样", "打样单"}, c.Labels(internal.KindSample))
	assert.ElementsMatch(t, []string{"新订单", "续订单", "纯衣单", "改版续订"}, c.Labels(internal.KindBulk))
	assert.Nil(t, c.Labels(internal.OrderKind("nope")))
}

func TestLoadRulesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "types.yaml")
	body := "sample_types: [试产]\nbulk_types: [量产, 返单]\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	rules, err := LoadRules(path)
	require.NoError(t, err)

	c := New(rules)
	assert.Equal(t, ClassSample, c.Classify("试产"))
	assert.Equal(t, ClassBulk, c.Classify("返单"))
	assert.Equal(t, ClassUnclassified, c.Classify("打样单"), "defaults must not leak into custom rules")
}

func TestLoadRulesEmptyPathUsesDefaults(t *testing.T) {
	rules, err := LoadRules("")
	require.NoError(t, err)
	assert.Equal(t, DefaultRules(), rules)
}

func TestRulesValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{name: "overlap", body: "sample_types: [打样单]\nbulk_types: [打样单]\n"},
		{name: "empty sample set", body: "sample_types: []\nbulk_types: [新订单]\n"},
		{name: "empty bulk set", body: "sample_types: [打样单]\nbulk_types: []\n"},
		{name: "blank label", body: "sample_types: ['']\nbulk_types: [新订单]\n"},
		{name: "not yaml", body: "{{{"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "types.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tc.body), 0o644))

			_, err := LoadRules(path)
			assert.Error(t, err)
		})
	}
}

package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractJSON(t *testing.T) {
	assert.Equal(t, `{"a":{"b":1}}`, ExtractJSON(`noise {"a":{"b":1}} tail`))
	assert.Equal(t, "", ExtractJSON("no braces"))
	assert.Equal(t, "", ExtractJSON("} backwards {"))
}

func TestObject(t *testing.T) {
	obj, ok := Object("```json\n{\"tool\":\"web_search\"}\n```")
	assert.True(t, ok)
	assert.Equal(t, "web_search", String(obj, "tool"))

	_, ok = Object("{not json}")
	assert.False(t, ok)
}

func TestAfterFinalAnswer(t *testing.T) {
	rest, ok := AfterFinalAnswer("Thought: done.\nFINAL ANSWER:  the market is large")
	assert.True(t, ok)
	assert.Equal(t, "the market is large", rest)

	_, ok = AfterFinalAnswer("still working")
	assert.False(t, ok)
}

func TestClipKeepsRunes(t *testing.T) {
	assert.Equal(t, "abc", Clip("abc", 10))
	assert.Equal(t, "é...(truncated)", Clip("éé", 3))
}

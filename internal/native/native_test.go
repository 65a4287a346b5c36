package native

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kristofer/loxie/internal/gc"
	"github.com/kristofer/loxie/internal/value"
)

// fakeTarget is a minimal stand-in for vm.Globals, enough to exercise
// RegisterAll and call the registered natives directly without
// constructing a full VM.
type fakeTarget struct {
	names *value.Table
	slots []value.Value
}

func newFakeTarget() *fakeTarget {
	return &fakeTarget{names: value.NewTable()}
}

func (f *fakeTarget) Resolve(name *value.String) int {
	if v, ok := f.names.Get(name); ok {
		return int(v.Number)
	}
	idx := len(f.slots)
	f.names.Set(name, value.Number(float64(idx)))
	f.slots = append(f.slots, value.Empty)
	return idx
}

func (f *fakeTarget) Define(idx int, v value.Value, isConst bool) {
	f.slots[idx] = v
}

func (f *fakeTarget) native(t *testing.T, name string) *value.Native {
	t.Helper()
	key := value.NewStringRaw(name, value.HashFNV1a(name))
	v, ok := f.names.Get(key)
	require.True(t, ok, "native %q was not registered", name)
	slot := f.slots[int(v.Number)]
	n, ok := slot.Obj.(*value.Native)
	require.True(t, ok)
	return n
}

func TestRegisterAllInstallsEveryNative(t *testing.T) {
	collector := gc.New()
	dst := newFakeTarget()
	New(collector).RegisterAll(dst)

	for _, name := range []string{
		"clock", "sha256", "sha512", "md5", "base64Encode", "base64Decode",
		"gzipCompress", "gzipDecompress", "fileRead", "fileWrite", "fileExists",
		"fileDelete", "jsonParse", "jsonGenerate", "regexMatch", "regexReplace",
		"randomInt", "randomFloat", "httpGet", "time",
	} {
		dst.native(t, name)
	}
}

func TestSha256Hash(t *testing.T) {
	collector := gc.New()
	dst := newFakeTarget()
	New(collector).RegisterAll(dst)

	n := dst.native(t, "sha256")
	result, err := n.Fn([]value.Value{value.Obj(collector.AllocateString("abc"))})
	require.NoError(t, err)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", result.String().Chars)
}

func TestBase64RoundTrip(t *testing.T) {
	collector := gc.New()
	dst := newFakeTarget()
	New(collector).RegisterAll(dst)

	enc := dst.native(t, "base64Encode")
	dec := dst.native(t, "base64Decode")

	encoded, err := enc.Fn([]value.Value{value.Obj(collector.AllocateString("loxie"))})
	require.NoError(t, err)

	decoded, err := dec.Fn([]value.Value{encoded})
	require.NoError(t, err)
	assert.Equal(t, "loxie", decoded.String().Chars)
}

func TestGzipRoundTrip(t *testing.T) {
	collector := gc.New()
	dst := newFakeTarget()
	New(collector).RegisterAll(dst)

	compress := dst.native(t, "gzipCompress")
	decompress := dst.native(t, "gzipDecompress")

	compressed, err := compress.Fn([]value.Value{value.Obj(collector.AllocateString("repeat repeat repeat"))})
	require.NoError(t, err)

	out, err := decompress.Fn([]value.Value{compressed})
	require.NoError(t, err)
	assert.Equal(t, "repeat repeat repeat", out.String().Chars)
}

func TestJSONRoundTrip(t *testing.T) {
	collector := gc.New()
	dst := newFakeTarget()
	New(collector).RegisterAll(dst)

	parse := dst.native(t, "jsonParse")
	generate := dst.native(t, "jsonGenerate")

	input := collector.AllocateString(`{"a": 1, "b": [1, 2, 3]}`)
	parsed, err := parse.Fn([]value.Value{value.Obj(input)})
	require.NoError(t, err)
	require.True(t, parsed.IsObject())

	tbl, ok := parsed.Obj.(*value.Table)
	require.True(t, ok)
	a, ok := tbl.Get(collector.AllocateString("a"))
	require.True(t, ok)
	assert.Equal(t, 1.0, a.Number)

	generated, err := generate.Fn([]value.Value{parsed})
	require.NoError(t, err)
	assert.Contains(t, generated.String().Chars, `"a":1`)
}

func TestRegexMatchAndReplace(t *testing.T) {
	collector := gc.New()
	dst := newFakeTarget()
	New(collector).RegisterAll(dst)

	match := dst.native(t, "regexMatch")
	matched, err := match.Fn([]value.Value{
		value.Obj(collector.AllocateString(`\d+`)),
		value.Obj(collector.AllocateString("room 42")),
	})
	require.NoError(t, err)
	assert.True(t, matched.Bool)

	replace := dst.native(t, "regexReplace")
	replaced, err := replace.Fn([]value.Value{
		value.Obj(collector.AllocateString(`\d+`)),
		value.Obj(collector.AllocateString("room 42")),
		value.Obj(collector.AllocateString("#")),
	})
	require.NoError(t, err)
	assert.Equal(t, "room #", replaced.String().Chars)
}

func TestRandomIntRequiresRange(t *testing.T) {
	collector := gc.New()
	dst := newFakeTarget()
	New(collector).RegisterAll(dst)

	randomInt := dst.native(t, "randomInt")
	_, err := randomInt.Fn([]value.Value{value.Number(5), value.Number(5)})
	assert.Error(t, err, "max must be strictly greater than min")

	result, err := randomInt.Fn([]value.Value{value.Number(0), value.Number(10)})
	require.NoError(t, err)
	assert.True(t, result.Number >= 0 && result.Number < 10)
}

func TestFileRoundTrip(t *testing.T) {
	collector := gc.New()
	dst := newFakeTarget()
	New(collector).RegisterAll(dst)

	dir := t.TempDir()
	path := dir + "/note.txt"

	write := dst.native(t, "fileWrite")
	_, err := write.Fn([]value.Value{
		value.Obj(collector.AllocateString(path)),
		value.Obj(collector.AllocateString("hello loxie")),
	})
	require.NoError(t, err)

	exists := dst.native(t, "fileExists")
	result, err := exists.Fn([]value.Value{value.Obj(collector.AllocateString(path))})
	require.NoError(t, err)
	assert.True(t, result.Bool)

	read := dst.native(t, "fileRead")
	content, err := read.Fn([]value.Value{value.Obj(collector.AllocateString(path))})
	require.NoError(t, err)
	assert.Equal(t, "hello loxie", content.String().Chars)

	del := dst.native(t, "fileDelete")
	_, err = del.Fn([]value.Value{value.Obj(collector.AllocateString(path))})
	require.NoError(t, err)

	result, _ = exists.Fn([]value.Value{value.Obj(collector.AllocateString(path))})
	assert.False(t, result.Bool)
}

// Package native implements loxie's C8 native-function interface
// (spec §6.1/§6.2): host-provided procedures installed as ordinary
// globals. The domain surface here mirrors the breadth of primitives
// kristofer-smog wires into its Smalltalk message table
// (pkg/vm/primitives.go) — http, crypto digests, compression, file
// I/O, JSON, regexp, randomness, and time — adapted to loxie's
// plain-global calling convention instead of message sends.
package native

import (
	"compress/gzip"
	"crypto/md5"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"io"
	"math/rand"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/kristofer/loxie/internal/gc"
	"github.com/kristofer/loxie/internal/value"
)

// Registry installs the native library into a set of globals backed
// by collector for string/array/table allocation, following spec
// §6.1's "a small built-in set is registered at startup".
type Registry struct {
	gc *gc.Collector
}

// New returns a Registry allocating through collector.
func New(collector *gc.Collector) *Registry {
	return &Registry{gc: collector}
}

// target is whatever can receive register_native's result: the VM's
// Globals (compile-time name interning + run-time slot assignment).
// Defining the interface here, rather than importing vm, keeps
// internal/native from creating an import cycle with internal/vm.
type target interface {
	Resolve(name *value.String) int
	Define(idx int, v value.Value, isConst bool)
}

// RegisterAll installs every native function into dst.
func (r *Registry) RegisterAll(dst target) {
	r.register(dst, "clock", 0, r.clock)
	r.register(dst, "sha256", 1, r.sha256Hash)
	r.register(dst, "sha512", 1, r.sha512Hash)
	r.register(dst, "md5", 1, r.md5Hash)
	r.register(dst, "base64Encode", 1, r.base64Encode)
	r.register(dst, "base64Decode", 1, r.base64Decode)
	r.register(dst, "gzipCompress", 1, r.gzipCompress)
	r.register(dst, "gzipDecompress", 1, r.gzipDecompress)
	r.register(dst, "fileRead", 1, r.fileRead)
	r.register(dst, "fileWrite", 2, r.fileWrite)
	r.register(dst, "fileExists", 1, r.fileExists)
	r.register(dst, "fileDelete", 1, r.fileDelete)
	r.register(dst, "jsonParse", 1, r.jsonParse)
	r.register(dst, "jsonGenerate", 1, r.jsonGenerate)
	r.register(dst, "regexMatch", 2, r.regexMatch)
	r.register(dst, "regexReplace", 3, r.regexReplace)
	r.register(dst, "randomInt", 2, r.randomInt)
	r.register(dst, "randomFloat", 0, r.randomFloat)
	r.register(dst, "httpGet", 1, r.httpGet)
	r.register(dst, "time", 0, r.timeNow)
}

func (r *Registry) register(dst target, name string, arity int, fn value.NativeFn) {
	n := r.gc.AllocateNative(name, arity, fn)
	idx := dst.Resolve(r.gc.AllocateString(name))
	dst.Define(idx, value.Obj(n), true)
}

func (r *Registry) str(s string) value.Value { return value.Obj(r.gc.AllocateString(s)) }

func argString(args []value.Value, i int) (string, error) {
	if i >= len(args) || !args[i].IsObject() || args[i].String() == nil {
		return "", errors.Errorf("argument %d must be a string", i)
	}
	return args[i].String().Chars, nil
}

func argNumber(args []value.Value, i int) (float64, error) {
	if i >= len(args) || !args[i].IsNumber() {
		return 0, errors.Errorf("argument %d must be a number", i)
	}
	return args[i].Number, nil
}

// clock returns wall-clock seconds, the one native spec §6.1 names by
// example.
func (r *Registry) clock(args []value.Value) (value.Value, error) {
	return value.Number(float64(time.Now().UnixNano()) / 1e9), nil
}

func (r *Registry) timeNow(args []value.Value) (value.Value, error) {
	return value.Number(float64(time.Now().Unix())), nil
}

func (r *Registry) sha256Hash(args []value.Value) (value.Value, error) {
	s, err := argString(args, 0)
	if err != nil {
		return value.Empty, err
	}
	sum := sha256.Sum256([]byte(s))
	return r.str(hex.EncodeToString(sum[:])), nil
}

func (r *Registry) sha512Hash(args []value.Value) (value.Value, error) {
	s, err := argString(args, 0)
	if err != nil {
		return value.Empty, err
	}
	sum := sha512.Sum512([]byte(s))
	return r.str(hex.EncodeToString(sum[:])), nil
}

func (r *Registry) md5Hash(args []value.Value) (value.Value, error) {
	s, err := argString(args, 0)
	if err != nil {
		return value.Empty, err
	}
	sum := md5.Sum([]byte(s))
	return r.str(hex.EncodeToString(sum[:])), nil
}

func (r *Registry) base64Encode(args []value.Value) (value.Value, error) {
	s, err := argString(args, 0)
	if err != nil {
		return value.Empty, err
	}
	return r.str(base64.StdEncoding.EncodeToString([]byte(s))), nil
}

func (r *Registry) base64Decode(args []value.Value) (value.Value, error) {
	s, err := argString(args, 0)
	if err != nil {
		return value.Empty, err
	}
	decoded, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return value.Empty, errors.Wrap(err, "base64Decode")
	}
	return r.str(string(decoded)), nil
}

func (r *Registry) gzipCompress(args []value.Value) (value.Value, error) {
	s, err := argString(args, 0)
	if err != nil {
		return value.Empty, err
	}
	var b strings.Builder
	w := gzip.NewWriter(&b)
	if _, err := w.Write([]byte(s)); err != nil {
		return value.Empty, errors.Wrap(err, "gzipCompress")
	}
	if err := w.Close(); err != nil {
		return value.Empty, errors.Wrap(err, "gzipCompress")
	}
	return r.str(b.String()), nil
}

func (r *Registry) gzipDecompress(args []value.Value) (value.Value, error) {
	s, err := argString(args, 0)
	if err != nil {
		return value.Empty, err
	}
	reader, err := gzip.NewReader(strings.NewReader(s))
	if err != nil {
		return value.Empty, errors.Wrap(err, "gzipDecompress")
	}
	defer reader.Close()
	out, err := io.ReadAll(reader)
	if err != nil {
		return value.Empty, errors.Wrap(err, "gzipDecompress")
	}
	return r.str(string(out)), nil
}

func (r *Registry) fileRead(args []value.Value) (value.Value, error) {
	path, err := argString(args, 0)
	if err != nil {
		return value.Empty, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return value.Empty, errors.Wrap(err, "fileRead")
	}
	return r.str(string(data)), nil
}

func (r *Registry) fileWrite(args []value.Value) (value.Value, error) {
	path, err := argString(args, 0)
	if err != nil {
		return value.Empty, err
	}
	content, err := argString(args, 1)
	if err != nil {
		return value.Empty, err
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return value.Empty, errors.Wrap(err, "fileWrite")
	}
	return value.Bool(true), nil
}

func (r *Registry) fileExists(args []value.Value) (value.Value, error) {
	path, err := argString(args, 0)
	if err != nil {
		return value.Empty, err
	}
	_, statErr := os.Stat(path)
	return value.Bool(statErr == nil), nil
}

func (r *Registry) fileDelete(args []value.Value) (value.Value, error) {
	path, err := argString(args, 0)
	if err != nil {
		return value.Empty, err
	}
	if err := os.Remove(path); err != nil {
		return value.Empty, errors.Wrap(err, "fileDelete")
	}
	return value.Bool(true), nil
}

// jsonParse decodes a JSON scalar, array, or object into the
// corresponding loxie value, recursively.
func (r *Registry) jsonParse(args []value.Value) (value.Value, error) {
	s, err := argString(args, 0)
	if err != nil {
		return value.Empty, err
	}
	var decoded any
	if err := json.Unmarshal([]byte(s), &decoded); err != nil {
		return value.Empty, errors.Wrap(err, "jsonParse")
	}
	return r.fromJSON(decoded), nil
}

func (r *Registry) fromJSON(v any) value.Value {
	switch t := v.(type) {
	case nil:
		return value.Nil
	case bool:
		return value.Bool(t)
	case float64:
		return value.Number(t)
	case string:
		return r.str(t)
	case []any:
		elems := make([]value.Value, len(t))
		for i, e := range t {
			elems[i] = r.fromJSON(e)
		}
		return value.Obj(r.gc.AllocateArray(elems))
	case map[string]any:
		tbl := r.gc.AllocateTable()
		for k, e := range t {
			tbl.Set(r.gc.AllocateString(k), r.fromJSON(e))
		}
		return value.Obj(tbl)
	default:
		return value.Nil
	}
}

// jsonGenerate encodes a number, string, bool, nil, array, or table
// into a JSON string.
func (r *Registry) jsonGenerate(args []value.Value) (value.Value, error) {
	if len(args) < 1 {
		return value.Empty, errors.New("jsonGenerate needs one argument")
	}
	encoded, err := json.Marshal(r.toJSON(args[0]))
	if err != nil {
		return value.Empty, errors.Wrap(err, "jsonGenerate")
	}
	return r.str(string(encoded)), nil
}

func (r *Registry) toJSON(v value.Value) any {
	switch {
	case v.IsNil():
		return nil
	case v.IsBool():
		return v.Bool
	case v.IsNumber():
		return v.Number
	case v.IsObject():
		switch obj := v.Obj.(type) {
		case *value.String:
			return obj.Chars
		case *value.Array:
			out := make([]any, len(obj.Elements))
			for i, e := range obj.Elements {
				out[i] = r.toJSON(e)
			}
			return out
		case *value.Table:
			out := map[string]any{}
			obj.Each(func(key string, val value.Value) {
				out[key] = r.toJSON(val)
			})
			return out
		}
	}
	return nil
}

func (r *Registry) regexMatch(args []value.Value) (value.Value, error) {
	pattern, err := argString(args, 0)
	if err != nil {
		return value.Empty, err
	}
	text, err := argString(args, 1)
	if err != nil {
		return value.Empty, err
	}
	matched, err := regexp.MatchString(pattern, text)
	if err != nil {
		return value.Empty, errors.Wrap(err, "regexMatch")
	}
	return value.Bool(matched), nil
}

func (r *Registry) regexReplace(args []value.Value) (value.Value, error) {
	pattern, err := argString(args, 0)
	if err != nil {
		return value.Empty, err
	}
	text, err := argString(args, 1)
	if err != nil {
		return value.Empty, err
	}
	replacement, err := argString(args, 2)
	if err != nil {
		return value.Empty, err
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return value.Empty, errors.Wrap(err, "regexReplace")
	}
	return r.str(re.ReplaceAllString(text, replacement)), nil
}

func (r *Registry) randomInt(args []value.Value) (value.Value, error) {
	lo, err := argNumber(args, 0)
	if err != nil {
		return value.Empty, err
	}
	hi, err := argNumber(args, 1)
	if err != nil {
		return value.Empty, err
	}
	if hi <= lo {
		return value.Empty, errors.New("randomInt requires max > min")
	}
	n := int64(lo) + rand.Int63n(int64(hi)-int64(lo))
	return value.Number(float64(n)), nil
}

func (r *Registry) randomFloat(args []value.Value) (value.Value, error) {
	return value.Number(rand.Float64()), nil
}

func (r *Registry) httpGet(args []value.Value) (value.Value, error) {
	url, err := argString(args, 0)
	if err != nil {
		return value.Empty, err
	}
	resp, err := http.Get(url)
	if err != nil {
		return value.Empty, errors.Wrap(err, "httpGet")
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return value.Empty, errors.Wrap(err, "httpGet")
	}
	return r.str(string(body)), nil
}

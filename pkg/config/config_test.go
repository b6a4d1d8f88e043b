package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiptop-linux/tiptop/pkg/errsink"
	"github.com/tiptop-linux/tiptop/pkg/screen"
)

const sampleConfig = `<tiptop>
	<options>
		<option name="delay" value="0.5" />
		<option name="idle" value="1" />
		<option name="batch" value="0" />
		<option name="show_cmdline" value="1" />
		<option name="max_iter" value="7" />
		<option name="only_name" value="cc1" />
	</options>
	<screen name="mem" desc="Memory hierarchy">
		<counter alias="MISS" config="CACHE_MISSES" type="HARDWARE" />
		<counter alias="INSN" config="INSTRUCTIONS" />
		<counter alias="RAWX" config="0x53003c" type="RAW" arch="no-such-arch" />
		<column header="  %MISS" format="%7.2f" desc="misses" expr="100*delta(MISS)/delta(INSN)" />
		<column header="  BAD" format="%5.1f" desc="bad" expr="delta(UNKNOWN)/delta(INSN)" />
	</screen>
</tiptop>
`

func newSink(t *testing.T) *errsink.Sink {
	t.Helper()
	return errsink.New(nil)
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	errs := newSink(t)
	opts := NewOptions()
	opts.Batch = true // toggles OR with the file
	reg := screen.NewRegistry(errs)

	path := writeConfig(t, t.TempDir(), sampleConfig)
	require.NoError(t, LoadConfig(path, opts, reg, errs))

	assert.Equal(t, 0.5, opts.Delay)
	assert.True(t, opts.Idle)
	assert.True(t, opts.Batch)
	assert.True(t, opts.ShowCmdline)
	assert.Equal(t, 7, opts.MaxIter)
	assert.Equal(t, "cc1", opts.OnlyName)

	require.Equal(t, 1, reg.Len())
	s := reg.Get(0)
	assert.Equal(t, "mem", s.Name)
	// the arch-restricted counter is skipped on this host
	assert.Equal(t, 2, s.NumCounters())
	// the column naming an undeclared counter is rejected
	require.Equal(t, 1, s.NumColumns())
	assert.Equal(t, "  %MISS", s.Columns()[0].Header)

	found := false
	for _, line := range errs.Lines() {
		if line == "Undeclared counter 'UNKNOWN' in screen 'mem': column ignored" {
			found = true
		}
	}
	assert.True(t, found, "expected a diagnostic naming the unknown alias and the screen")
}

func TestLoadConfigMalformed(t *testing.T) {
	errs := newSink(t)
	reg := screen.NewRegistry(errs)
	path := writeConfig(t, t.TempDir(), "<tiptop><screen name='x'>")

	err := LoadConfig(path, NewOptions(), reg, errs)
	assert.Error(t, err)
	assert.Equal(t, 1, errs.Count())
}

func TestLoadConfigWrongRoot(t *testing.T) {
	errs := newSink(t)
	reg := screen.NewRegistry(errs)
	path := writeConfig(t, t.TempDir(), "<toptip></toptip>")

	assert.Error(t, LoadConfig(path, NewOptions(), reg, errs))
}

func TestFindConfigPrecedence(t *testing.T) {
	cli := t.TempDir()
	env := t.TempDir()
	writeConfig(t, cli, "<tiptop/>")
	writeConfig(t, env, "<tiptop/>")
	t.Setenv("TIPTOP", env)

	path, ok := FindConfig(cli)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(cli, ConfigFileName), path)

	// without a CLI path, the environment directory wins
	path, ok = FindConfig("")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(env, ConfigFileName), path)
}

func TestExportRoundTrip(t *testing.T) {
	dir := t.TempDir()
	oldwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(oldwd)

	errs := newSink(t)
	opts := NewOptions()
	opts.Delay = 1.5
	opts.MaxIter = 3
	reg := screen.NewRegistry(errs)
	reg.RegisterBuiltins()

	require.NoError(t, ExportConfig(opts, reg))

	// a second export must refuse to overwrite
	assert.Error(t, ExportConfig(opts, reg))

	opts2 := NewOptions()
	reg2 := screen.NewRegistry(errs)
	path, ok := FindConfig(dir)
	require.True(t, ok)
	require.NoError(t, LoadConfig(path, opts2, reg2, errs))

	assert.Equal(t, 1.5, opts2.Delay)
	assert.Equal(t, 3, opts2.MaxIter)

	require.Equal(t, reg.Len(), reg2.Len())
	for i, want := range reg.All() {
		got := reg2.Get(i)
		assert.Equal(t, want.Name, got.Name)
		assert.Equal(t, want.Desc, got.Desc)
		require.Equal(t, want.NumCounters(), got.NumCounters())
		for j, c := range want.Counters() {
			assert.Equal(t, c.Alias, got.Counters()[j].Alias)
			assert.Equal(t, c.Type, got.Counters()[j].Type)
			assert.Equal(t, c.Config, got.Counters()[j].Config)
		}
		require.Equal(t, want.NumColumns(), got.NumColumns())
		for j, c := range want.Columns() {
			assert.Equal(t, c.Header, got.Columns()[j].Header)
			assert.Equal(t, c.Format, got.Columns()[j].Format)
			assert.Equal(t, c.Expr.String(), got.Columns()[j].Expr.String())
		}
	}
}

package peinspect

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpiExports_FiltersAndSorts(t *testing.T) {
	names := []string{"SpiOnDetach", "DllMain", "SpiSupportDecl", "SpiCustom", "spiOnAttach", "SpiOnAttach"}

	assert.Equal(t, []string{"SpiOnAttach", "SpiOnDetach", "SpiSupportDecl"}, SpiExports(names))
	assert.Empty(t, SpiExports(nil))
}

func TestInspector_Inspect_RejectsNonPE(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "readme.asi")
	require.NoError(t, os.WriteFile(path, []byte("this is not a portable executable"), 0o644))

	_, err := New(hclog.NewNullLogger()).Inspect(path)
	assert.Error(t, err)
}

func TestInspector_Inspect_MissingFile(t *testing.T) {
	_, err := New(hclog.NewNullLogger()).Inspect(filepath.Join(t.TempDir(), "absent.asi"))
	assert.Error(t, err)
}

func TestFileImage_ModuleImage_RejectsNonPE(t *testing.T) {
	path := filepath.Join(t.TempDir(), "MassEffect1.exe")
	require.NoError(t, os.WriteFile(path, make([]byte, 512), 0o644))

	_, _, err := FileImage{Path: path}.ModuleImage()
	assert.Error(t, err)
}

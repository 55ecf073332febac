package broadcast

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIcon(t *testing.T) {
	t.Parallel()

	icon := DefaultIcon()
	require.True(t, icon.IsValid())
	assert.Equal(t, "desktop-notification.png", icon.Name())

	img, err := png.Decode(bytes.NewReader(icon.Data()))
	require.NoError(t, err)
	assert.Equal(t, IconSize, img.Bounds().Dx())
	assert.Equal(t, IconSize, img.Bounds().Dy())

	assert.Equal(t, icon.Data(), DefaultIcon().Data(), "default icon is rendered once")
}

func TestIconFromFile(t *testing.T) {
	t.Parallel()

	src := image.NewRGBA(image.Rect(0, 0, 400, 200))
	for x := 0; x < 400; x++ {
		src.Set(x, 10, color.Black)
	}

	srcPath := filepath.Join(t.TempDir(), "large.jpg")
	f, err := os.Create(srcPath)
	require.NoError(t, err)
	require.NoError(t, jpeg.Encode(f, src, nil))
	require.NoError(t, f.Close())

	icon, err := IconFromFile(srcPath)
	require.NoError(t, err)
	assert.Equal(t, "large.png", icon.Name())

	img, err := png.Decode(bytes.NewReader(icon.Data()))
	require.NoError(t, err)
	assert.LessOrEqual(t, img.Bounds().Dx(), IconSize)
	assert.LessOrEqual(t, img.Bounds().Dy(), IconSize)

	_, err = IconFromFile(filepath.Join(t.TempDir(), "missing.png"))
	require.Error(t, err)
}

func TestIcon_SaveTo(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	iconPath, err := DefaultIcon().SaveTo(dir)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(iconPath, dir), "unexpected location for icon")
	require.True(t, strings.HasSuffix(iconPath, ".png"), "unexpected file name for icon")

	onDisk, err := os.ReadFile(iconPath)
	require.NoError(t, err)
	assert.Equal(t, DefaultIcon().Data(), onDisk)

	preexistingIconPath, err := DefaultIcon().SaveTo(dir)
	require.NoError(t, err)
	assert.Equal(t, iconPath, preexistingIconPath)

	_, err = Icon{name: "empty.png"}.SaveTo(dir)
	require.Error(t, err)
}

func TestApplicationAlerts(t *testing.T) {
	t.Parallel()

	app := NewApplication("app", DefaultIcon())
	app.AddAlert(NewAlert("NewMessage", DefaultIcon()))

	alert, ok := app.Alert("NewMessage")
	require.True(t, ok)
	assert.Equal(t, "NewMessage", alert.Key)

	_, ok = app.Alert("Other")
	assert.False(t, ok)

	alerts := app.Alerts()
	delete(alerts, "NewMessage")
	assert.Len(t, app.Alerts(), 1, "Alerts returns a copy")
}

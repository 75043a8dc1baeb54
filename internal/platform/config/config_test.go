package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv(EnvConfigPath, "")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.LogStore.Driver)
	assert.Equal(t, 3, cfg.Portal.MaxOpenPages)
	assert.Equal(t, 3, cfg.Batch.Retries)
	assert.Equal(t, time.Second, cfg.Geocode.Delay)
}

func TestFromEnv_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "skrining.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
portal:
  base_url: https://portal.example
  selectors:
    nik: "#nik-input"
  success_timeout: 90s
geocode:
  locationiq_keys: [a, b]
logstore:
  driver: memory
`), 0o600))

	t.Setenv(EnvConfigPath, path)
	t.Setenv("LOGSTORE_DRIVER", "postgres")
	t.Setenv("LOCATIONIQ_KEYS", "k1, k2,,k3")
	t.Setenv("BATCH_RETRIES", "5")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "https://portal.example", cfg.Portal.BaseURL)
	assert.Equal(t, "#nik-input", cfg.Portal.Selectors["nik"])
	assert.Equal(t, 90*time.Second, cfg.Portal.SuccessTimeout)
	assert.Equal(t, "postgres", cfg.LogStore.Driver)
	assert.Equal(t, []string{"k1", "k2", "k3"}, cfg.Geocode.LocationIQKeys)
	assert.Equal(t, 5, cfg.Batch.Retries)
	// untouched defaults survive the file merge
	assert.Equal(t, "/login", cfg.Portal.LoginPath)
}

func TestFromEnv_InvalidValues(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	t.Setenv("BATCH_RETRIES", "many")
	t.Setenv("LOCK_STALE_AFTER", "soon")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BATCH_RETRIES")
	assert.Contains(t, err.Error(), "LOCK_STALE_AFTER")
}

func TestFromEnv_MissingFile(t *testing.T) {
	t.Setenv(EnvConfigPath, filepath.Join(t.TempDir(), "nope.yaml"))

	_, err := FromEnv()
	assert.Error(t, err)
}

func TestNormalize_Month(t *testing.T) {
	now := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

	m, err := Normalize{}.Month(now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), m)

	m, err = Normalize{ExamMonth: "2024-12"}.Month(now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC), m)

	_, err = Normalize{ExamMonth: "12/2024"}.Month(now)
	assert.Error(t, err)
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	t.Setenv("PORTAL_BASE_URL", "")
	path := filepath.Join(t.TempDir(), "skrining.yaml")
	require.NoError(t, os.WriteFile(path, []byte("portal:\n  base_url: https://one.example\n"), 0o600))

	got := make(chan Config, 16)
	stop, err := Watch(path, nil, func(cfg Config) { got <- cfg })
	require.NoError(t, err)
	defer stop()

	require.NoError(t, os.WriteFile(path, []byte("portal:\n  base_url: https://two.example\n"), 0o600))

	// a truncating write can surface as more than one event
	deadline := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-got:
			if cfg.Portal.BaseURL == "https://two.example" {
				return
			}
		case <-deadline:
			t.Fatal("no reload after write")
		}
	}
}

func TestWatch_ReloadsAfterRenameOver(t *testing.T) {
	t.Setenv("PORTAL_BASE_URL", "")
	dir := t.TempDir()
	path := filepath.Join(dir, "skrining.yaml")
	require.NoError(t, os.WriteFile(path, []byte("portal:\n  base_url: https://one.example\n"), 0o600))

	got := make(chan Config, 16)
	stop, err := Watch(path, nil, func(cfg Config) { got <- cfg })
	require.NoError(t, err)
	defer stop()

	// save twice the way editors do: write a sibling, rename it over the file
	for _, url := range []string{"https://two.example", "https://three.example"} {
		tmp := filepath.Join(dir, ".skrining.yaml.swp")
		require.NoError(t, os.WriteFile(tmp, []byte("portal:\n  base_url: "+url+"\n"), 0o600))
		require.NoError(t, os.Rename(tmp, path))

		deadline := time.After(5 * time.Second)
	wait:
		for {
			select {
			case cfg := <-got:
				if cfg.Portal.BaseURL == url {
					break wait
				}
			case <-deadline:
				t.Fatalf("no reload to %s after rename", url)
			}
		}
	}
}

func TestWatch_MissingFile(t *testing.T) {
	_, err := Watch(filepath.Join(t.TempDir(), "absent.yaml"), nil, func(Config) {})
	assert.Error(t, err)
}

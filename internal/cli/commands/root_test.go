package commands

import "testing"

func TestLoadConfig_FlagsOverrideEnvironment(t *testing.T) {
	saved := *cfg
	t.Cleanup(func() { *cfg = saved })

	t.Setenv("WORKERS", "7")
	t.Setenv("SEED", "99")
	t.Setenv("OUTPUT_DIR", "/srv/curated")

	if err := partitionCmd.ParseFlags([]string{"--seed", "5", "--out", "elsewhere"}); err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}
	if err := loadConfig(partitionCmd, nil); err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}

	if cfg.Workers != 7 {
		t.Errorf("Expected workers from the environment, got %d", cfg.Workers)
	}
	if cfg.Partition.Seed != 5 {
		t.Errorf("Expected --seed to override SEED, got %d", cfg.Partition.Seed)
	}
	if cfg.OutputDirectory != "elsewhere" {
		t.Errorf("Expected --out to override OUTPUT_DIR, got %q", cfg.OutputDirectory)
	}
}

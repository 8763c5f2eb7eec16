// Package configfile хранит бизнес-конфиг одним YAML-документом.
// Сохранение атомарное: пишем во временный файл и переименовываем,
// частичных диффов не бывает.
package configfile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/Spok95/studio-bot/internal/domain/pricing"
)

type File struct {
	path string
}

func New(path string) *File { return &File{path: path} }

func (f *File) Load(_ context.Context) (pricing.Config, error) {
	var cfg pricing.Config
	data, err := os.ReadFile(f.path)
	if err != nil {
		return cfg, fmt.Errorf("read business config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse business config: %w", err)
	}
	return cfg, nil
}

func (f *File) Save(_ context.Context, cfg pricing.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, ".business-*.yaml")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.path)
}

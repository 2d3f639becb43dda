// Package settings holds the back-office feature toggles.
package settings

import (
	"context"
	"errors"
	"log/slog"
	"sort"
)

const (
	StoreOpen       = "store_open"
	CashOnDelivery  = "cash_on_delivery"
	MaintenanceMode = "maintenance_mode"
)

var Known = map[string]bool{StoreOpen: true, CashOnDelivery: true, MaintenanceMode: true}

var ErrUnknownSetting = errors.New("unknown setting")

type Setting struct {
	Key     string `json:"key"`
	Enabled bool   `json:"enabled"`
}

type Store interface {
	All(ctx context.Context) (map[string]bool, error)
	Set(ctx context.Context, key string, enabled bool) error
	Toggle(ctx context.Context, key string) (bool, error)
}

type Cache interface {
	Get(ctx context.Context) (map[string]bool, bool, error)
	Put(ctx context.Context, vals map[string]bool) error
	Invalidate(ctx context.Context) error
}

type Service struct {
	Store Store
	Cache Cache
	Log   *slog.Logger
}

func (s *Service) load(ctx context.Context) (map[string]bool, error) {
	if vals, ok, err := s.Cache.Get(ctx); err == nil && ok {
		return vals, nil
	} else if err != nil {
		s.Log.Warn("settings cache read failed", "error", err)
	}
	vals, err := s.Store.All(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.Cache.Put(ctx, vals); err != nil {
		s.Log.Warn("settings cache write failed", "error", err)
	}
	return vals, nil
}

func (s *Service) List(ctx context.Context) ([]Setting, error) {
	vals, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Setting, 0, len(vals))
	for k, v := range vals {
		out = append(out, Setting{Key: k, Enabled: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *Service) Enabled(ctx context.Context, key string) (bool, error) {
	if !Known[key] {
		return false, ErrUnknownSetting
	}
	vals, err := s.load(ctx)
	if err != nil {
		return false, err
	}
	return vals[key], nil
}

func (s *Service) Toggle(ctx context.Context, key string) (Setting, error) {
	if !Known[key] {
		return Setting{}, ErrUnknownSetting
	}
	v, err := s.Store.Toggle(ctx, key)
	if err != nil {
		return Setting{}, err
	}
	s.invalidate(ctx)
	return Setting{Key: key, Enabled: v}, nil
}

func (s *Service) Set(ctx context.Context, key string, enabled bool) (Setting, error) {
	if !Known[key] {
		return Setting{}, ErrUnknownSetting
	}
	if err := s.Store.Set(ctx, key, enabled); err != nil {
		return Setting{}, err
	}
	s.invalidate(ctx)
	return Setting{Key: key, Enabled: enabled}, nil
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.Cache.Invalidate(ctx); err != nil {
		s.Log.Warn("settings cache invalidate failed", "error", err)
	}
}

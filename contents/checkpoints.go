package contents

import (
	"context"
	"errors"

	"github.com/viant/omnicm/backend"
	"github.com/viant/omnicm/checkpoint"
)

// CreateCheckpoint snapshots the current content of file p.
func (s *Store) CreateCheckpoint(ctx context.Context, p string) (*checkpoint.Checkpoint, error) {
	logical, fsPath, err := s.resolve("checkpoint", p)
	if err != nil {
		return nil, err
	}
	defer s.locks.Lock(fsPath)()
	var result *checkpoint.Checkpoint
	err = s.withBackend(ctx, func(fs backend.FileSystem) error {
		content, err := s.readFile(ctx, fs, fsPath)
		if err != nil {
			return err
		}
		result, err = s.checkpoints.Create(ctx, fs, logical, content)
		return err
	})
	if err != nil {
		return nil, wrap("checkpoint", logical, err)
	}
	return result, nil
}

// ListCheckpoints returns the checkpoints of p, newest first.
func (s *Store) ListCheckpoints(ctx context.Context, p string) ([]*checkpoint.Checkpoint, error) {
	logical, _, err := s.resolve("checkpoints", p)
	if err != nil {
		return nil, err
	}
	var result []*checkpoint.Checkpoint
	err = s.withBackend(ctx, func(fs backend.FileSystem) error {
		result, err = s.checkpoints.List(ctx, fs, logical)
		return err
	})
	if err != nil {
		return nil, wrap("checkpoints", logical, err)
	}
	return result, nil
}

// RestoreCheckpoint writes checkpoint id back to p. The replaced version is itself checkpointed.
func (s *Store) RestoreCheckpoint(ctx context.Context, p, id string) (*Document, error) {
	logical, fsPath, err := s.resolve("restore", p)
	if err != nil {
		return nil, err
	}
	defer s.locks.Lock(fsPath)()
	defer s.invalidate(fsPath)
	var doc *Document
	checkpointed := false
	err = s.withBackend(ctx, func(fs backend.FileSystem) error {
		content, err := s.checkpoints.Restore(ctx, fs, logical, id)
		if err != nil {
			return err
		}
		if err = s.write(ctx, fs, logical, fsPath, content, &checkpointed); err != nil {
			return err
		}
		info, err := fs.Stat(ctx, fsPath)
		if err != nil {
			return err
		}
		doc = newDocument(logical, info, typeOf(info))
		return nil
	})
	if err != nil {
		return nil, wrap("restore", logical, err)
	}
	return doc, nil
}

// DeleteCheckpoint removes checkpoint id of p.
func (s *Store) DeleteCheckpoint(ctx context.Context, p, id string) error {
	logical, _, err := s.resolve("delete checkpoint", p)
	if err != nil {
		return err
	}
	err = s.withBackend(ctx, func(fs backend.FileSystem) error {
		return s.checkpoints.Delete(ctx, fs, logical, id)
	})
	return wrap("delete checkpoint", logical, err)
}

func (s *Store) readFile(ctx context.Context, fs backend.FileSystem, fsPath string) ([]byte, error) {
	info, err := fs.Stat(ctx, fsPath)
	if err != nil {
		return nil, err
	}
	if info.IsDir {
		return nil, ErrIsDirectory
	}
	content, err := backend.ReadFile(ctx, fs, fsPath)
	if errors.Is(err, backend.ErrNotExist) {
		return nil, ErrNotFound
	}
	return content, err
}

package storage

import (
	"encoding/json"
	"errors"

	llmerrors "github.com/randalmurphal/llmbinge/pkg/llmbinge/errors"
	"github.com/randalmurphal/llmbinge/pkg/llmbinge/tree"
)

func encode(op, key string, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, &llmerrors.StorageError{Op: op, Key: key, Err: err}
	}
	return data, nil
}

func decodeNode(key string, data []byte) (tree.Node, error) {
	var n tree.Node
	if err := json.Unmarshal(data, &n); err != nil {
		return tree.Node{}, &llmerrors.StorageError{Op: "decode node", Key: key, Err: err}
	}
	if n.ChildrenIDs == nil {
		n.ChildrenIDs = []string{}
	}
	return n, nil
}

func decodeSession(key string, data []byte) (tree.Session, error) {
	var s tree.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return tree.Session{}, &llmerrors.StorageError{Op: "decode session", Key: key, Err: err}
	}
	if s.RootNodeIDs == nil {
		s.RootNodeIDs = []string{}
	}
	return s, nil
}

func decodeOverrides(data []byte) (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, &llmerrors.StorageError{Op: "decode config", Key: configKey, Err: err}
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}

func wrap(op, key string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrStoreClosed) {
		return err
	}
	var storageErr *llmerrors.StorageError
	if errors.As(err, &storageErr) {
		return err
	}
	return &llmerrors.StorageError{Op: op, Key: key, Err: err}
}

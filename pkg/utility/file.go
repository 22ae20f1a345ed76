package utility

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

func registerFileFuncs(r *Registry) {
	regAsync(r, "file", "read", "Read a file as a string", func(ctx context.Context, args []interface{}) (interface{}, error) {
		path, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil, fmt.Errorf("file.read: %w", readErr)
		}
		return string(data), nil
	}, Param{Name: "path", Type: "string", Required: true})

	regAsync(r, "file", "write", "Write a string to a file, creating parent directories", func(ctx context.Context, args []interface{}) (interface{}, error) {
		path, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		content, err := stringArg(args, 1)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("file.write: %w", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return nil, fmt.Errorf("file.write: %w", err)
		}
		return true, nil
	}, Param{Name: "path", Type: "string", Required: true},
		Param{Name: "content", Type: "string", Required: true})

	regAsync(r, "file", "append", "Append a string to a file", func(ctx context.Context, args []interface{}) (interface{}, error) {
		path, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		content, err := stringArg(args, 1)
		if err != nil {
			return nil, err
		}
		f, openErr := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if openErr != nil {
			return nil, fmt.Errorf("file.append: %w", openErr)
		}
		defer f.Close()
		if _, err := f.WriteString(content); err != nil {
			return nil, fmt.Errorf("file.append: %w", err)
		}
		return true, nil
	}, Param{Name: "path", Type: "string", Required: true},
		Param{Name: "content", Type: "string", Required: true})

	regAsync(r, "file", "delete", "Delete a file", func(ctx context.Context, args []interface{}) (interface{}, error) {
		path, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		if err := os.Remove(path); err != nil {
			if os.IsNotExist(err) {
				return false, nil
			}
			return nil, fmt.Errorf("file.delete: %w", err)
		}
		return true, nil
	}, Param{Name: "path", Type: "string", Required: true})

	regAsync(r, "file", "copy", "Copy a file", func(ctx context.Context, args []interface{}) (interface{}, error) {
		src, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		dst, err := stringArg(args, 1)
		if err != nil {
			return nil, err
		}
		if err := copyFile(src, dst); err != nil {
			return nil, fmt.Errorf("file.copy: %w", err)
		}
		return true, nil
	}, Param{Name: "source", Type: "string", Required: true},
		Param{Name: "destination", Type: "string", Required: true})

	regAsync(r, "file", "move", "Move or rename a file", func(ctx context.Context, args []interface{}) (interface{}, error) {
		src, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		dst, err := stringArg(args, 1)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return nil, fmt.Errorf("file.move: %w", err)
		}
		if err := os.Rename(src, dst); err != nil {
			// Cross-device moves need a copy then delete.
			if copyErr := copyFile(src, dst); copyErr != nil {
				return nil, fmt.Errorf("file.move: %w", err)
			}
			if rmErr := os.Remove(src); rmErr != nil {
				return nil, fmt.Errorf("file.move: %w", rmErr)
			}
		}
		return true, nil
	}, Param{Name: "source", Type: "string", Required: true},
		Param{Name: "destination", Type: "string", Required: true})

	regAsync(r, "file", "getStats", "File size, timestamps and type", func(ctx context.Context, args []interface{}) (interface{}, error) {
		path, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		info, statErr := os.Stat(path)
		if statErr != nil {
			return nil, fmt.Errorf("file.getStats: %w", statErr)
		}
		return map[string]interface{}{
			"name":        info.Name(),
			"size":        info.Size(),
			"isDirectory": info.IsDir(),
			"modifiedAt":  info.ModTime().UTC().Format("2006-01-02T15:04:05Z07:00"),
			"mode":        info.Mode().String(),
		}, nil
	}, Param{Name: "path", Type: "string", Required: true})

	regAsync(r, "file", "listDirectory", "Entry names in a directory", func(ctx context.Context, args []interface{}) (interface{}, error) {
		path, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		entries, readErr := os.ReadDir(path)
		if readErr != nil {
			return nil, fmt.Errorf("file.listDirectory: %w", readErr)
		}
		names := make([]interface{}, 0, len(entries))
		for _, entry := range entries {
			names = append(names, entry.Name())
		}
		return names, nil
	}, Param{Name: "path", Type: "string", Required: true})

	regAsync(r, "file", "createDirectory", "Create a directory and its parents", func(ctx context.Context, args []interface{}) (interface{}, error) {
		path, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, fmt.Errorf("file.createDirectory: %w", err)
		}
		return true, nil
	}, Param{Name: "path", Type: "string", Required: true})

	regAsync(r, "file", "deleteDirectory", "Delete a directory recursively", func(ctx context.Context, args []interface{}) (interface{}, error) {
		path, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		if err := os.RemoveAll(path); err != nil {
			return nil, fmt.Errorf("file.deleteDirectory: %w", err)
		}
		return true, nil
	}, Param{Name: "path", Type: "string", Required: true})

	regAsync(r, "file", "searchFiles", "Paths under a root matching a glob pattern", func(ctx context.Context, args []interface{}) (interface{}, error) {
		root, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		pattern, err := stringArg(args, 1)
		if err != nil {
			return nil, err
		}
		matches := []interface{}{}
		walkErr := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if d.IsDir() {
				return nil
			}
			ok, matchErr := filepath.Match(pattern, d.Name())
			if matchErr != nil {
				return matchErr
			}
			if ok {
				matches = append(matches, path)
			}
			return nil
		})
		if walkErr != nil {
			return nil, fmt.Errorf("file.searchFiles: %w", walkErr)
		}
		return matches, nil
	}, Param{Name: "root", Type: "string", Required: true},
		Param{Name: "pattern", Type: "string", Required: true})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}

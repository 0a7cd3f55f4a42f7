package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go-ocr-enhancer/internal/enhance"
)

const groundTruthSuffix = ".gt.txt"

var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".bmp": true,
	".gif": true, ".tif": true, ".tiff": true, ".webp": true,
}

// sample is one dataset image with its optional transcription
type sample struct {
	Path        string
	GroundTruth string
}

// discoverSamples walks dir for images. The transcription of scan.png is
// read from scan.png.gt.txt, falling back to scan.gt.txt.
func discoverSamples(dir string) ([]sample, error) {
	var samples []sample
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(p))] {
			return nil
		}
		gt, err := readGroundTruth(p)
		if err != nil {
			return err
		}
		samples = append(samples, sample{Path: p, GroundTruth: gt})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan dataset %s: %w", dir, err)
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i].Path < samples[j].Path })
	return samples, nil
}

func readGroundTruth(imagePath string) (string, error) {
	candidates := []string{
		imagePath + groundTruthSuffix,
		strings.TrimSuffix(imagePath, filepath.Ext(imagePath)) + groundTruthSuffix,
	}
	for _, c := range candidates {
		data, err := os.ReadFile(c)
		if err == nil {
			return strings.TrimSpace(string(data)), nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
	}
	return "", nil
}

// parseMethods turns a comma separated list into method identifiers.
// An empty list selects every method.
func parseMethods(list string) ([]string, error) {
	if strings.TrimSpace(list) == "" {
		all := enhance.Methods()
		ids := make([]string, len(all))
		for i, m := range all {
			ids[i] = m.ID
		}
		return ids, nil
	}

	var ids []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(list, ",") {
		m, err := enhance.ParseMethod(part)
		if err != nil {
			return nil, err
		}
		if !seen[string(m)] {
			seen[string(m)] = true
			ids = append(ids, string(m))
		}
	}
	return ids, nil
}

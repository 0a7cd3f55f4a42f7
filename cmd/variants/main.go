// Command variants derives low-light, blurred and noisy copies of every image
// in a directory of clear scans.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go-ocr-enhancer/internal/logger"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/webp"
)

var inputExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".bmp": true, ".webp": true,
}

func main() {
	in := flag.String("in", filepath.Join("dataset", "A_clear"), "directory of clear images")
	out := flag.String("out", "dataset", "directory receiving the variant folders")
	seed := flag.Uint64("seed", 1, "noise seed")
	flag.Parse()

	written, err := generate(*in, *out, *seed)
	if err != nil {
		log.Fatalf("Failed to generate variants: %v", err)
	}
	if written == 0 {
		log.Fatalf("No images found in %s", *in)
	}
	fmt.Printf("wrote %d images to:\n", written)
	for _, v := range variants {
		fmt.Println("   ", filepath.Join(*out, v.Dir))
	}
}

// generate writes every variant of every image in inDir below outDir and
// returns the number of files written. Unreadable images are skipped.
func generate(inDir, outDir string, seed uint64) (int, error) {
	entries, err := os.ReadDir(inDir)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", inDir, err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && inputExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			files = append(files, filepath.Join(inDir, e.Name()))
		}
	}
	sort.Strings(files)

	for _, v := range variants {
		if err := os.MkdirAll(filepath.Join(outDir, v.Dir), 0o755); err != nil {
			return 0, err
		}
	}

	rng := rand.New(rand.NewPCG(seed, seed))
	written := 0
	for _, p := range files {
		img, err := imaging.Open(p)
		if err != nil {
			logger.WithError(err).WithField("path", p).Warn("Skipping unreadable image")
			continue
		}
		base := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
		for _, v := range variants {
			dst := filepath.Join(outDir, v.Dir, base+v.Suffix+".png")
			if err := imaging.Save(v.Apply(img, rng), dst); err != nil {
				return written, fmt.Errorf("save %s: %w", dst, err)
			}
			written++
		}
		logger.WithFields(logrus.Fields{"path": p, "base": base}).Debug("Variants written")
	}
	return written, nil
}

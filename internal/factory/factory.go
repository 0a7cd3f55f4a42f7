package factory

import (
	"context"
	"fmt"

	"go-ocr-enhancer/internal/ocr"
	"go-ocr-enhancer/internal/storage"
)

// EngineType represents the available recognition engine bindings
type EngineType string

const (
	// GosseractEngine binds libtesseract in-process
	GosseractEngine EngineType = "gosseract"
	// CLIEngine runs the tesseract executable per call
	CLIEngine EngineType = "cli"
)

// StorageType represents different types of artifact storage backends
type StorageType string

const (
	// LocalStorage for local file system
	LocalStorage StorageType = "local"
	// AzureStorage for Azure blob storage
	AzureStorage StorageType = "azure"
)

// EngineOptions carries engine specific settings
type EngineOptions struct {
	// Command is the tesseract executable used by CLIEngine
	Command string
}

// StorageOptions carries backend specific settings
type StorageOptions struct {
	UploadDir      string
	ResultDir      string
	AzureAccount   string
	AzureKey       string
	AzureContainer string
}

// EngineFactory creates recognition engines
type EngineFactory interface {
	CreateEngine(engineType EngineType, opts EngineOptions) (ocr.Engine, error)
}

// StorageFactory creates artifact stores
type StorageFactory interface {
	CreateStorage(ctx context.Context, storageType StorageType, opts StorageOptions) (storage.ArtifactStore, error)
}

// engineFactory implements EngineFactory
type engineFactory struct{}

// NewEngineFactory creates a new engine factory
func NewEngineFactory() EngineFactory {
	return &engineFactory{}
}

// CreateEngine creates an engine based on the specified type
func (f *engineFactory) CreateEngine(engineType EngineType, opts EngineOptions) (ocr.Engine, error) {
	switch engineType {
	case GosseractEngine:
		return ocr.NewTesseractEngine(), nil
	case CLIEngine:
		if opts.Command == "" {
			return nil, fmt.Errorf("cli engine requires a tesseract command")
		}
		return ocr.NewCLIEngine(opts.Command), nil
	default:
		return nil, fmt.Errorf("unsupported engine type: %s", engineType)
	}
}

// storageFactory implements StorageFactory
type storageFactory struct{}

// NewStorageFactory creates a new storage factory
func NewStorageFactory() StorageFactory {
	return &storageFactory{}
}

// CreateStorage creates a storage implementation based on the specified type
func (f *storageFactory) CreateStorage(ctx context.Context, storageType StorageType, opts StorageOptions) (storage.ArtifactStore, error) {
	switch storageType {
	case LocalStorage:
		return storage.NewLocalStore(opts.UploadDir, opts.ResultDir)
	case AzureStorage:
		return storage.NewAzureStore(ctx, opts.AzureAccount, opts.AzureKey, opts.AzureContainer)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}

// ComponentFactory combines all factories
type ComponentFactory struct {
	EngineFactory  EngineFactory
	StorageFactory StorageFactory
}

// NewComponentFactory creates a new component factory
func NewComponentFactory() *ComponentFactory {
	return &ComponentFactory{
		EngineFactory:  NewEngineFactory(),
		StorageFactory: NewStorageFactory(),
	}
}

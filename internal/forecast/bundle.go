package forecast

import (
	"context"
	"fmt"

	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/model"
	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/storage"
	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/trainer"
)

// Bundle holds the loaded artifacts one forecast run scores with. The
// median volume model is mandatory; the band and handle-time models may be
// nil when their targets were skipped during training, and the generator
// degrades per-field instead of failing.
type Bundle struct {
	VolumeLow    *model.Artifact
	VolumeMedian *model.Artifact
	VolumeHigh   *model.Artifact
	AHT          *model.Artifact
	AWT          *model.Artifact
}

// LoadBundle fetches the persisted artifacts from the store.
func LoadBundle(ctx context.Context, store storage.Store) (*Bundle, error) {
	b := &Bundle{}
	required, err := loadArtifact(ctx, store, trainer.TargetVolumeMedian)
	if err != nil {
		return nil, fmt.Errorf("median volume model unavailable: %w", err)
	}
	b.VolumeMedian = required

	b.VolumeLow, _ = loadArtifact(ctx, store, trainer.TargetVolumeLow)
	b.VolumeHigh, _ = loadArtifact(ctx, store, trainer.TargetVolumeHigh)
	b.AHT, _ = loadArtifact(ctx, store, trainer.TargetAHT)
	b.AWT, _ = loadArtifact(ctx, store, trainer.TargetAWT)
	return b, nil
}

func loadArtifact(ctx context.Context, store storage.Store, target string) (*model.Artifact, error) {
	data, err := store.GetModelArtifact(ctx, target)
	if err != nil {
		return nil, err
	}
	return model.UnmarshalArtifact(data)
}

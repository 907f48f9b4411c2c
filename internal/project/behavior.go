package project

import (
	"context"
	"fmt"

	"github.com/ObesityHub/robokop-rags/internal/builder"
	"github.com/ObesityHub/robokop-rags/internal/models"
)

// studyBehavior is the study-kind dispatch table: how a kind's file is
// scanned and its hits persisted, how its association edges are built,
// and how its hit rows are walked during validation. behaviorFor resolves
// it once per study; call sites never branch on the kind again.
type studyBehavior struct {
	searchAndSaveHits            func(m *Manager, ctx context.Context, study *models.Study, fullPath string) (int, error)
	buildAssociations            func(m *Manager, ctx context.Context, b *builder.Builder, study *models.Study, force bool) (int, error)
	countUnwrittenNormalizedHits func(m *Manager, ctx context.Context, study *models.Study) (int, error)
}

var studyBehaviors = map[models.StudyKind]studyBehavior{
	models.GWAS: {
		searchAndSaveHits:            (*Manager).searchAndSaveGWASHits,
		buildAssociations:            (*Manager).buildGWASAssociations,
		countUnwrittenNormalizedHits: (*Manager).countUnwrittenNormalizedGWASHits,
	},
	models.MWAS: {
		searchAndSaveHits:            (*Manager).searchAndSaveMWASHits,
		buildAssociations:            (*Manager).buildMWASAssociations,
		countUnwrittenNormalizedHits: (*Manager).countUnwrittenNormalizedMWASHits,
	},
}

func behaviorFor(kind models.StudyKind) (studyBehavior, error) {
	bh, ok := studyBehaviors[kind]
	if !ok {
		return studyBehavior{}, fmt.Errorf("unsupported study type %q", kind)
	}
	return bh, nil
}

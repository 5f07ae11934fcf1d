package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nexuscore/assistant-core/pkg/models"
)

func TestSQLiteKeywordIndex_IndexAndSearch(t *testing.T) {
	idx, err := NewSQLiteKeywordIndex(":memory:")
	require.NoError(t, err)
	defer idx.Close()

	ctx := context.Background()
	require.NoError(t, idx.Index(ctx, &models.KnowledgeItem{
		ID: "k1", Bucket: models.BucketProjects, Title: "Deploy runbook",
		Content: "steps to deploy the release pipeline", ContentHash: "h1",
	}))
	require.NoError(t, idx.Index(ctx, &models.KnowledgeItem{
		ID: "k2", Bucket: models.BucketProjects, Title: "Unrelated",
		Content: "nothing about grocery lists here", ContentHash: "h2",
	}))

	results, err := idx.Search(ctx, models.BucketProjects, "deploy release", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "k1", results[0].Item.ID)
}

func TestSQLiteKeywordIndex_Search_ScopedToBucket(t *testing.T) {
	idx, err := NewSQLiteKeywordIndex(":memory:")
	require.NoError(t, err)
	defer idx.Close()

	ctx := context.Background()
	require.NoError(t, idx.Index(ctx, &models.KnowledgeItem{
		ID: "k1", Bucket: models.BucketPersonal, Title: "Doctor appointment",
		Content: "schedule a doctor appointment next week", ContentHash: "h1",
	}))

	results, err := idx.Search(ctx, models.BucketProjects, "doctor appointment", 10)
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestSQLiteKeywordIndex_Search_EmptyQueryErrors(t *testing.T) {
	idx, err := NewSQLiteKeywordIndex(":memory:")
	require.NoError(t, err)
	defer idx.Close()

	_, err = idx.Search(context.Background(), models.BucketProjects, "", 10)
	require.Error(t, err)
}

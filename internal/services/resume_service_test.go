package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/justsurfingit/jobtrackr/internal/apperrors"
	"github.com/justsurfingit/jobtrackr/internal/logger"
	"github.com/justsurfingit/jobtrackr/internal/models"
	"github.com/justsurfingit/jobtrackr/internal/storage"
	"github.com/justsurfingit/jobtrackr/internal/testutil"
)

func newResumeService(t *testing.T, db *gorm.DB, analyzer Analyzer) *ResumeService {
	t.Helper()
	st, err := storage.New(t.TempDir(), "/files", 1)
	require.NoError(t, err)
	_, usage := newAccounting(db)
	return NewResumeService(db, st, usage, analyzer, logger.NewNop())
}

func textUpload(name, body string) *Upload {
	return &Upload{FileName: name, ContentType: "text/plain", Reader: strings.NewReader(body)}
}

func TestUploadRespectsResumeLimit(t *testing.T) {
	db := testutil.NewTestDB(t)
	svc := newResumeService(t, db, nil)
	ctx := context.Background()
	user := testutil.CreateUser(t, db, "u@example.com", models.RoleUser)

	_, err := svc.Upload(ctx, user.ID, textUpload("resume.exe", "x"))
	assert.True(t, apperrors.IsValidationError(err))

	r, err := svc.Upload(ctx, user.ID, textUpload("resume.txt", "Go and Postgres"))
	require.NoError(t, err)
	assert.True(t, r.IsDefault)
	assert.Equal(t, "Go and Postgres", r.ContentText)
	assert.Equal(t, 1, currentUsage(t, db, user.ID).ResumesUploaded)

	f, err := svc.Storage.Open(storage.BucketResumes, r.StoragePath)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	// The free plan keeps one resume.
	_, err = svc.Upload(ctx, user.ID, textUpload("second.txt", "x"))
	assert.True(t, apperrors.IsForbiddenError(err))
}

func TestDefaultResumeMovesOnDelete(t *testing.T) {
	db := testutil.NewTestDB(t)
	svc := newResumeService(t, db, nil)
	subs := svc.Usage.Plans.(*SubscriptionService)
	ctx := context.Background()
	user := testutil.CreateUser(t, db, "u@example.com", models.RoleUser)
	_, err := subs.CreateSubscription(ctx, user.ID, testutil.Plan(t, db, "Pro").ID, "")
	require.NoError(t, err)

	first, err := svc.Upload(ctx, user.ID, textUpload("first.md", "first"))
	require.NoError(t, err)
	second, err := svc.Upload(ctx, user.ID, textUpload("second.md", "second"))
	require.NoError(t, err)
	assert.True(t, first.IsDefault)
	assert.False(t, second.IsDefault)

	_, err = svc.SetDefault(ctx, user.ID, second.ID)
	require.NoError(t, err)
	list, err := svc.List(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.True(t, list[0].IsDefault)
	assert.False(t, list[1].IsDefault)

	require.NoError(t, svc.Delete(ctx, user.ID, second.ID))
	got, err := svc.Get(ctx, user.ID, first.ID)
	require.NoError(t, err)
	assert.True(t, got.IsDefault)

	_, err = svc.Storage.Open(storage.BucketResumes, second.StoragePath)
	assert.Error(t, err)

	other := testutil.CreateUser(t, db, "o@example.com", models.RoleUser)
	assert.True(t, apperrors.IsNotFoundError(svc.Delete(ctx, other.ID, first.ID)))
}

func TestKeywordCompare(t *testing.T) {
	job := &models.Job{Title: "Backend", Skills: models.StringList([]string{"Go", "Kafka", "PostgreSQL", "Redis", "gRPC"})}

	res := KeywordCompare("Five years of go services on postgresql.", job)
	assert.Equal(t, 40, res.MatchScore)
	assert.Equal(t, []string{"Go", "PostgreSQL"}, res.MatchedSkills)
	assert.Equal(t, []string{"Kafka", "Redis", "gRPC"}, res.MissingSkills)
	assert.Len(t, res.Recommendations, 3)
	assert.Contains(t, res.Summary, "2 of 5")

	empty := KeywordCompare("anything", &models.Job{Title: "Unlisted"})
	assert.Zero(t, empty.MatchScore)
	assert.Empty(t, empty.MatchedSkills)
}

func TestCompareFallsBackToKeywords(t *testing.T) {
	db := testutil.NewTestDB(t)
	analyzer := &fakeAnalyzer{err: errAnalyzer}
	svc := newResumeService(t, db, analyzer)
	ctx := context.Background()
	user := testutil.CreateUser(t, db, "u@example.com", models.RoleUser)

	job := testutil.CreateJob(t, db, "backend", "Acme")
	require.NoError(t, db.Model(job).Update("skills", models.StringList([]string{"go", "rust"})).Error)

	r, err := svc.Upload(ctx, user.ID, textUpload("cv.txt", "I write Go."))
	require.NoError(t, err)

	cmp, err := svc.Compare(ctx, user.ID, r.ID, job.ID)
	require.NoError(t, err)
	assert.Equal(t, analyzerKeyword, cmp.Analyzer)
	assert.Equal(t, 50, cmp.MatchScore)
	assert.Equal(t, []string{"rust"}, models.Strings(cmp.MissingSkills))

	analyzer.err = nil
	analyzer.compare = `{"match_score":140,"matched_skills":["go"],"missing_skills":[],"summary":"strong","recommendations":[]}`
	cmp, err = svc.Compare(ctx, user.ID, r.ID, job.ID)
	require.NoError(t, err)
	assert.Equal(t, analyzerLLM, cmp.Analyzer)
	assert.Equal(t, 100, cmp.MatchScore)

	list, err := svc.Comparisons(ctx, user.ID, r.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Equal(t, 2, currentUsage(t, db, user.ID).ComparisonsRun)

	_, err = svc.Compare(ctx, user.ID, r.ID, 9999)
	assert.True(t, apperrors.IsNotFoundError(err))
}

func TestCompareStopsAtPlanLimit(t *testing.T) {
	db := testutil.NewTestDB(t)
	svc := newResumeService(t, db, nil)
	ctx := context.Background()
	user := testutil.CreateUser(t, db, "u@example.com", models.RoleUser)
	job := testutil.CreateJob(t, db, "backend", "Acme")
	r, err := svc.Upload(ctx, user.ID, textUpload("cv.txt", "go"))
	require.NoError(t, err)

	free := testutil.Plan(t, db, models.FreePlanName)
	setUsage(t, db, user.ID, models.UserUsage{ResumesUploaded: 1, ComparisonsRun: free.MaxComparisonsPerMonth})

	_, err = svc.Compare(ctx, user.ID, r.ID, job.ID)
	assert.True(t, apperrors.IsForbiddenError(err))

	var count int64
	require.NoError(t, db.Model(&models.ResumeComparison{}).Count(&count).Error)
	assert.Zero(t, count)
}

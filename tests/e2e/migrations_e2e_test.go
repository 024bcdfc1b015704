//go:build e2e
// +build e2e

package e2e

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/festy23/pitcrew/internal/database/migrate"
)

func (s *E2ETestSuite) TestMigrations_SchemaVersion() {
	version, dirty, err := migrate.Version(s.db, migrationsDir)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), uint(1), version)
	assert.False(s.T(), dirty)

	// re-applying is a no-op
	require.NoError(s.T(), migrate.Up(s.db, migrationsDir))
}

func (s *E2ETestSuite) TestMigrations_TablesAndIndexes() {
	for _, table := range []string{"repositories", "pull_requests", "ai_reviews", "review_issues"} {
		assert.True(s.T(), s.db.Migrator().HasTable(table), "missing table %s", table)
	}

	var indexes []string
	require.NoError(s.T(), s.db.Raw(
		"SELECT indexname FROM pg_indexes WHERE schemaname = 'public' ORDER BY indexname").Scan(&indexes).Error)
	assert.Contains(s.T(), indexes, "idx_repositories_provider_repo_id")
	assert.Contains(s.T(), indexes, "idx_pull_requests_repository_number")
	assert.Contains(s.T(), indexes, "idx_ai_reviews_pull_request_id")
	assert.Contains(s.T(), indexes, "idx_review_issues_review_severity")
}

func (s *E2ETestSuite) TestMigrations_RejectsInvalidStatus() {
	require.NoError(s.T(), s.db.Exec(
		`INSERT INTO repositories (provider, provider_repo_id, name, full_name, url)
		 VALUES ('github', '1', 'r', 'o/r', 'https://example.com')`).Error)

	err := s.db.Exec(
		`INSERT INTO pull_requests (repository_id, pr_number, title, author, status, source_branch, target_branch, url)
		 VALUES (1, 1, 't', 'a', 'SUPERSEDED', 's', 't', 'https://example.com')`).Error
	assert.Error(s.T(), err)
}

func (s *E2ETestSuite) TestMigrations_DownAndUp() {
	require.NoError(s.T(), migrate.Down(s.db, migrationsDir, 1))
	assert.False(s.T(), s.db.Migrator().HasTable("pull_requests"))

	version, _, err := migrate.Version(s.db, migrationsDir)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), uint(0), version)

	require.NoError(s.T(), migrate.Up(s.db, migrationsDir))
	assert.True(s.T(), s.db.Migrator().HasTable("pull_requests"))
}

package casdoor

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/redis/go-redis/v9"

	"github.com/SAP-F-2025/quiz-engine/internal/cache"
	"github.com/SAP-F-2025/quiz-engine/internal/models"
	"github.com/SAP-F-2025/quiz-engine/internal/repositories"
)

// CasdoorConfig holds the configuration for Casdoor connection
type CasdoorConfig struct {
	Endpoint         string
	ClientID         string
	ClientSecret     string
	Certificate      string
	OrganizationName string
	ApplicationName  string
}

// NewClient builds a Casdoor SDK client from config
func NewClient(config CasdoorConfig) *casdoorsdk.Client {
	return casdoorsdk.NewClient(
		config.Endpoint,
		config.ClientID,
		config.ClientSecret,
		config.Certificate,
		config.OrganizationName,
		config.ApplicationName,
	)
}

// UserLister is the subset of the Casdoor client used for enrollment lookups
type UserLister interface {
	GetUsers() ([]*casdoorsdk.User, error)
}

// EnrollmentCasdoor resolves subject enrollment from Casdoor group membership:
// a student is enrolled in subject X when one of their groups is named X
// (optionally qualified as "<org>/X").
type EnrollmentCasdoor struct {
	client UserLister
	cache  *cache.CacheHelper
}

func NewEnrollmentCasdoor(client UserLister, redisClient *redis.Client) repositories.EnrollmentDirectory {
	return &EnrollmentCasdoor{
		client: client,
		cache:  cache.NewCacheHelper(redisClient, cache.EnrollmentCacheConfig.Prefix),
	}
}

func (e *EnrollmentCasdoor) ListEnrolledStudents(ctx context.Context, subjectID string) ([]string, error) {
	var students []string
	err := e.cache.CacheOrExecute(ctx, "subject:"+subjectID, &students, cache.EnrollmentCacheConfig.TTL, func() (interface{}, error) {
		users, err := e.client.GetUsers()
		if err != nil {
			return nil, fmt.Errorf("failed to get users from Casdoor: %w", err)
		}
		return filterEnrolled(users, subjectID), nil
	})
	if err != nil {
		return nil, err
	}
	return students, nil
}

func filterEnrolled(users []*casdoorsdk.User, subjectID string) []string {
	out := make([]string, 0)
	for _, user := range users {
		if user == nil || user.IsForbidden || user.IsDeleted {
			continue
		}
		if MapRole(user) != models.RoleStudent {
			continue
		}
		for _, group := range user.Groups {
			if group == subjectID || strings.HasSuffix(group, "/"+subjectID) {
				out = append(out, user.Id)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

// MapRole derives the engine role from Casdoor roles and the admin flag.
// Admin wins; otherwise the first recognised role is used and students are the default.
func MapRole(user *casdoorsdk.User) models.UserRole {
	if user.IsAdmin {
		return models.RoleAdmin
	}

	names := make([]string, 0, len(user.Roles)+1)
	for _, role := range user.Roles {
		if role != nil {
			names = append(names, role.Name)
		}
	}
	if user.Type != "" {
		names = append(names, user.Type)
	}
	return RoleFromNames(names)
}

// RoleFromNames maps free-form role names onto engine roles
func RoleFromNames(names []string) models.UserRole {
	found := models.RoleStudent
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "admin", "administrator":
			return models.RoleAdmin
		case "teacher", "instructor":
			found = models.RoleInstructor
		case "grader", "ta":
			if found == models.RoleStudent {
				found = models.RoleGrader
			}
		}
	}
	return found
}

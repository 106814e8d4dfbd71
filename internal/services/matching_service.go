package services

import (
	"context"
	"net/mail"
	"strings"

	"gorm.io/gorm"

	"github.com/justsurfingit/jobtrackr/internal/models"
)

type MatcherService struct {
	DB *gorm.DB
}

func NewMatcherService(db *gorm.DB) *MatcherService {
	return &MatcherService{DB: db}
}

// CompanyMatch is a company named by an email together with the user's open jobs there.
type CompanyMatch struct {
	Company string
	Jobs    []models.Job
}

// minCompanyNameLen skips names like "X" or "Go" that would match everything.
const minCompanyNameLen = 3

// FindCompanyFromEmail matches an email against the companies of the jobs a user tracks. Jobs in
// a terminal status are ignored. Rules, in order: the subject names the company, the sender's
// display name does, the sender's domain does.
func (s *MatcherService) FindCompanyFromEmail(ctx context.Context, userID, subject, rawSender string) (*CompanyMatch, error) {
	var senderName, senderAddr string
	if parsed, err := mail.ParseAddress(rawSender); err == nil {
		senderName = strings.ToLower(parsed.Name)
		senderAddr = strings.ToLower(parsed.Address)
	} else {
		senderAddr = strings.ToLower(rawSender)
	}
	var domain string
	if parts := strings.Split(senderAddr, "@"); len(parts) == 2 {
		domain = parts[1]
	}
	subjectLower := strings.ToLower(subject)

	var jobs []models.Job
	err := s.DB.WithContext(ctx).
		Joins("JOIN user_job_status ON user_job_status.job_id = jobs.id").
		Where("user_job_status.user_id = ?", userID).
		Where("user_job_status.status IS NULL OR user_job_status.status NOT IN ?",
			[]string{models.StatusOffer, models.StatusRejected, models.StatusWithdrawn}).
		Order("jobs.id ASC").
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}

	byCompany := make(map[string][]models.Job)
	var order []string
	for _, j := range jobs {
		name := strings.ToLower(strings.TrimSpace(j.Company))
		if len(name) < minCompanyNameLen {
			continue
		}
		if _, seen := byCompany[name]; !seen {
			order = append(order, name)
		}
		byCompany[name] = append(byCompany[name], j)
	}

	for _, name := range order {
		if strings.Contains(subjectLower, name) ||
			(senderName != "" && strings.Contains(senderName, name)) ||
			(domain != "" && strings.Contains(domain, strings.ReplaceAll(name, " ", ""))) {
			matched := byCompany[name]
			return &CompanyMatch{Company: matched[0].Company, Jobs: matched}, nil
		}
	}
	return nil, nil
}

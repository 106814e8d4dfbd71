package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"

	"github.com/justsurfingit/jobtrackr/internal/config"
	"github.com/justsurfingit/jobtrackr/internal/logger"
)

// maxPromptInput caps the text pasted into a prompt.
const maxPromptInput = 20000

// ErrLLMDisabled is returned by NewLLMService when no API key is configured.
var ErrLLMDisabled = errors.New("llm disabled: no gemini api key")

// Analyzer is the language model work the other services depend on.
type Analyzer interface {
	ExtractJobDetails(ctx context.Context, text string) (string, error)
	CompareResume(ctx context.Context, resumeText, jobText string) (string, error)
	AnalyzeEmailStatus(ctx context.Context, company, subject, body string) (string, error)
	// IdentifyJobRole returns the index of the title the email is about, or -1.
	IdentifyJobRole(ctx context.Context, titles []string, subject, body string) int
}

type LLMService struct {
	Client llms.Model
	Logger logger.Interface
}

// NewLLMService initializes the Gemini client.
func NewLLMService(ctx context.Context, cfg *config.LLMConfig, log logger.Interface) (*LLMService, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, ErrLLMDisabled
	}

	llm, err := googleai.New(ctx,
		googleai.WithAPIKey(cfg.GeminiAPIKey),
		googleai.WithDefaultModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &LLMService{Client: llm, Logger: log}, nil
}

func (s *LLMService) generate(ctx context.Context, prompt string) (string, error) {
	resp, err := llms.GenerateFromSinglePrompt(ctx, s.Client, prompt)
	if err != nil {
		return "", fmt.Errorf("llm request failed: %w", err)
	}
	return cleanJSON(resp), nil
}

const jobExtractionPrompt = `
You are an expert Job Data Extraction Agent. Your task is to analyze the provided text from a job posting and extract structured data.

### INSTRUCTIONS:
1. **Analyze** the text to identify the core job details.
2. **Ignore** navigation menus, footers, "similar jobs" lists, and site advertisements.
3. **Extract** the following fields strictly.
4. **Format** the output as valid JSON only. Do not wrap the output in markdown code blocks.

### OUTPUT SCHEMA:
{
    "company_name": "Name of the company (e.g., Google, StartupInc)",
    "role_title": "Job title (e.g., Senior Backend Engineer)",
    "location": "Job location or 'Remote'",
    "description": "A clean summary of the job. Focus on Responsibilities and Requirements.",
    "tech_stack": ["Array", "of", "technologies", "mentioned", "e.g., Go, React, AWS"],
    "salary_range": "The salary string if explicitly mentioned (e.g., '$100k - $150k'), otherwise null"
}

### CONSTRAINT:
If a piece of information is missing, set the value to null. Do not hallucinate or guess.

### RAW CONTENT:
%s
`

// ExtractJobDetails takes the text of a posting and returns the extraction as a JSON string.
func (s *LLMService) ExtractJobDetails(ctx context.Context, text string) (string, error) {
	return s.generate(ctx, fmt.Sprintf(jobExtractionPrompt, truncate(text, maxPromptInput)))
}

const resumeComparisonPrompt = `
You are a technical recruiter. Compare the candidate's resume with the job posting.

Return valid JSON only, without markdown, using this schema:
{
    "match_score": 0-100 integer,
    "matched_skills": ["skills from the job the resume demonstrates"],
    "missing_skills": ["skills from the job the resume lacks"],
    "summary": "two sentences on overall fit",
    "recommendations": ["concrete edits to the resume for this job"]
}

### JOB:
%s

### RESUME:
%s
`

func (s *LLMService) CompareResume(ctx context.Context, resumeText, jobText string) (string, error) {
	half := maxPromptInput / 2
	return s.generate(ctx, fmt.Sprintf(resumeComparisonPrompt, truncate(jobText, half), truncate(resumeText, half)))
}

const emailStatusPrompt = `
You track job applications. An email arrived about an application at %s.

Decide the application's new status. Answer with valid JSON only, without markdown:
{"status": "<one of: interested, applied, interviewing, offer, rejected, withdrawn, NO_CHANGE, UNKNOWN>", "summary": "<one sentence>"}

Use NO_CHANGE for acknowledgements and newsletters. Use UNKNOWN if the email is unrelated.

### SUBJECT:
%s

### BODY:
%s
`

// AnalyzeEmailStatus returns {"status","summary"} JSON for a recruiter email.
func (s *LLMService) AnalyzeEmailStatus(ctx context.Context, company, subject, body string) (string, error) {
	return s.generate(ctx, fmt.Sprintf(emailStatusPrompt, company, subject, truncate(body, maxPromptInput)))
}

const jobRolePrompt = `
A candidate applied to several roles at the same company:
%s
Which role is this email about? Answer with the number only, or -1 if it cannot be determined.

### SUBJECT:
%s

### BODY:
%s
`

func (s *LLMService) IdentifyJobRole(ctx context.Context, titles []string, subject, body string) int {
	var list strings.Builder
	for i, t := range titles {
		fmt.Fprintf(&list, "%d. %s\n", i, t)
	}

	resp, err := s.generate(ctx, fmt.Sprintf(jobRolePrompt, list.String(), subject, truncate(body, maxPromptInput)))
	if err != nil {
		s.Logger.Warnw("failed to identify job role", "error", err)
		return -1
	}

	idx, err := strconv.Atoi(strings.TrimSpace(resp))
	if err != nil || idx < 0 || idx >= len(titles) {
		return -1
	}
	return idx
}

// cleanJSON strips the markdown fences models add despite being told not to.
func cleanJSON(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

package audit

import "errors"

var (
	// ErrInvalidTier is returned for any tier outside quick/standard/deep.
	ErrInvalidTier = errors.New("invalid audit tier")

	// ErrMissingInput means neither skill_url nor skill_content was given.
	ErrMissingInput = errors.New("skill_url or skill_content is required")

	// ErrInvalidSkillURL menandakan skill_url bukan URL http/https absolut
	ErrInvalidSkillURL = errors.New("invalid skill_url")

	// ErrMalformedResult wraps every shape problem found while parsing a backend result.
	ErrMalformedResult = errors.New("malformed audit result")
)

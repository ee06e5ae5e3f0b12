package services

// GazetteerLoadError marks a failure while replacing the gazetteer table.
type GazetteerLoadError struct {
	Cause error
}

func (e *GazetteerLoadError) Error() string {
	return "could not load gazetteer data: " + e.Cause.Error()
}

func (e *GazetteerLoadError) Unwrap() error { return e.Cause }

// LocationAliasLoadError marks a failure while replacing the alias table.
type LocationAliasLoadError struct {
	Cause error
}

func (e *LocationAliasLoadError) Error() string {
	return "could not load location aliases: " + e.Cause.Error()
}

func (e *LocationAliasLoadError) Unwrap() error { return e.Cause }

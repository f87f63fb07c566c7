package metric

import "strings"

// Tag constants
const (
	TagEnv                   = "env"
	TagService               = "service"
	TagPath                  = "path"
	TagMethod                = "method"
	TagHttpStatusCode        = "http_status_code"
	TagExternalService       = "external_service"
	TagCommunicationProtocol = "communication_protocol"
	TagJobStatus             = "job_status"
	TagFileExtension         = "file_extension"
	TagOutcome               = "outcome"

	TagValueCommunicationProtocolHttp = "http"
	TagValueOutcomeSuccess            = "success"
	TagValueOutcomeFailure            = "failure"
)

type Tag struct {
	Name  string
	Value string
}

func NewTag(name, value string) Tag {
	return Tag{
		Name:  name,
		Value: value,
	}
}

// BuildTag builds a tag from the given name and value
func BuildTag(tags ...Tag) []string {
	allTags := make([]string, 0, len(tags))
	for _, tag := range tags {
		allTags = append(allTags, TagAsString(tag.Name, tag.Value))
	}
	return allTags
}

// normalizeTagValue sanitizes tag values to prevent parsing issues
func normalizeTagValue(value string) string {
	// "/" is kept as-is to preserve URL paths
	problematicChars := []string{":", " ", "\\", ",", "|", "@", "#"}
	normalized := value
	for _, char := range problematicChars {
		normalized = strings.ReplaceAll(normalized, char, "_")
	}
	return normalized
}

func TagAsString(name string, value string) string {
	return name + ":" + normalizeTagValue(value)
}

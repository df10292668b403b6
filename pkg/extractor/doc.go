// Package extractor turns uploaded documents into candidate concept graphs.
//
// FileTextExtractor reads PDF, HTML and plain text files. LLMConceptExtractor
// asks a language model for a concept map and ParseCandidateGraph validates
// the reply. Failures of either stage are reported as *ExtractionError.
package extractor

package orchestrator

import (
	"fmt"

	"github.com/jobtrail/core/internal/modules/provider"
)

const (
	directInputLimit = 24000
	chunkCharBudget  = 6000
)

// systemPrompt returns the per-purpose instruction block. Prompts lead with
// what the model must NOT do, which in practice keeps small local models from
// wrapping JSON in prose.
func systemPrompt(p Purpose, opts Options) string {
	lang := opts.Language
	if lang == "" {
		lang = "the same language as the input"
	}
	tone := opts.Tone
	if tone == "" {
		tone = "professional"
	}
	switch p {
	case PurposeParseJob:
		return `You are a job posting parser.
Do NOT add commentary, markdown fences, or fields that are not listed.
Do NOT invent information missing from the posting; use empty strings or empty arrays instead.
Return ONLY a JSON object with exactly these fields:
{"title":"","company":"","location":"","salary":"","requirements":[],"skills":[],"summary":""}
"requirements" and "skills" are arrays of short strings. "summary" is at most two sentences.`
	case PurposeExtractProfile:
		return `You are a resume parser.
Do NOT add commentary or markdown fences.
Do NOT invent data; leave fields empty when the resume does not state them.
Return ONLY a JSON object with exactly these fields:
{"full_name":"","email":"","phone":"","headline":"","skills":[],"experience":[{"company":"","title":"","start":"","end":"","description":""}],"education":[{"school":"","degree":"","start":"","end":""}]}`
	case PurposeExtractSkills:
		return `You are a skill extractor.
Do NOT add commentary, markdown fences, or duplicate entries.
Return ONLY a JSON object: {"skills":[]} where each entry is a short skill name as it appears in the text.`
	case PurposeGenResume:
		return fmt.Sprintf(`You are a resume writer.
Do NOT fabricate employers, dates, or credentials not present in the provided profile.
Do NOT wrap the output in code fences.
Write in %s, %s tone.
Return ONLY a JSON object: {"markdown":""} where "markdown" is a complete resume in Markdown tailored to the provided job posting.`, lang, tone)
	case PurposeGenCoverLetter:
		return fmt.Sprintf(`You are a cover letter writer.
Do NOT fabricate experience the profile does not contain.
Do NOT wrap the output in code fences.
Write in %s, %s tone.
Return ONLY a JSON object: {"markdown":""} where "markdown" is a complete cover letter in Markdown addressed to the company in the posting.`, lang, tone)
	case PurposeRewriteText:
		return fmt.Sprintf(`You are a text editor.
Do NOT change the meaning of the text or add new claims.
Do NOT wrap the output in code fences.
Rewrite in %s, %s tone.
Return ONLY a JSON object: {"text":""}.`, lang, tone)
	case PurposeGenSummary:
		return `You are a summarizer.
Do NOT add opinions or information absent from the text.
Do NOT wrap the output in code fences.
Return ONLY a JSON object: {"summary":""} with at most three sentences.`
	}
	return `Return ONLY a JSON object.`
}

// retryPrompt is sent once when the model's reply fails to decode as JSON.
const retryPrompt = "Your previous reply was not valid JSON. Reply again with ONLY the JSON object, no prose, no code fences."

func shapeHint(p Purpose) string {
	switch p {
	case PurposeParseJob:
		return `{"title","company","location","salary","requirements","skills","summary"}`
	case PurposeExtractProfile:
		return `{"full_name","email","phone","headline","skills","experience","education"}`
	case PurposeExtractSkills:
		return `{"skills"}`
	case PurposeGenResume, PurposeGenCoverLetter:
		return `{"markdown"}`
	case PurposeRewriteText:
		return `{"text"}`
	case PurposeGenSummary:
		return `{"summary"}`
	}
	return ""
}

func maxTokensFor(p Purpose) int {
	switch p {
	case PurposeGenResume, PurposeGenCoverLetter:
		return 4096
	case PurposeExtractSkills, PurposeGenSummary:
		return 1024
	default:
		return 2048
	}
}

func buildRequest(p Purpose, input string, opts Options) provider.Request {
	return provider.Request{
		System:      systemPrompt(p, opts),
		Prompt:      input,
		ShapeHint:   shapeHint(p),
		MaxTokens:   maxTokensFor(p),
		Temperature: opts.Temperature,
	}
}

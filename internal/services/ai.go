package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"
)

// Prompt fragments shared by all three completion shapes. The renderer on
// the client side is LaTeX.js, which rejects several legacy constructs.
const latexLimitations = `  **Important LaTeX.js Limitations**:
  1. Do not use conditional expressions or plainTeX macros
  2. Do not use deprecated macros like eqnarray, \it, \sl
  3. Do not use \raggedleft in the middle of paragraphs
  4. Do not attempt to load packages with \usepackage
  5. Use simple | instead of \| for absolute value bars
  6. Wrap all equations in $$ delimiters, not \[ \] or $ $`

const defaultAIBaseURL = "https://api.openai.com/v1"

type ChatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// AIClient relays prompts to the external completion API. Base URL and key
// are read from the environment per call so they follow the loaded config.
type AIClient struct {
	httpClient *http.Client
}

var AI = &AIClient{
	httpClient: &http.Client{Timeout: 90 * time.Second},
}

func (c *AIClient) complete(model string, messages []ChatMessage, maxTokens int, temperature float64) (string, error) {
	baseURL := os.Getenv("AI_API_BASE_URL")
	if baseURL == "" {
		baseURL = defaultAIBaseURL
	}

	payload := chatCompletionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal completion request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, baseURL+"/chat/completions", bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("failed to build completion request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+os.Getenv("AI_API_KEY"))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("completion API returned status %d", resp.StatusCode)
	}

	var completion chatCompletionResponse

	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", fmt.Errorf("failed to decode completion response: %w", err)
	}

	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("no content in completion response")
	}

	return strings.TrimSpace(completion.Choices[0].Message.Content), nil
}

// EditSelection asks the model to change only the LaTeX behind the selected
// fragment and return the whole document.
func (c *AIClient) EditSelection(latexSource string, selectedHTML string, instruction string) (string, error) {
	prompt := fmt.Sprintf(`You are an AI assistant that edits LaTeX documents based on user instructions.

**Task**: Modify the LaTeX source code according to the user's request. Only edit the specific section corresponding to the selected HTML content. Do not change any other parts of the document.

%s

**LaTeX Source Code**:
%s

**Selected HTML Content**:
%s

**User's Request**:
%s

**Instructions**:
- Identify the LaTeX code corresponding to the selected HTML content
- Apply the user's requested changes to that portion of the LaTeX code
- Do not modify any other parts of the document
- Ensure all equations use $$ delimiters
- Use \left| and \right| for absolute value bars, not \left\| or \right\|
- Return the entire updated LaTeX source code, formatted exactly as it was sent to you

**Output**:
[Provide only the updated LaTeX source code.]`, latexLimitations, latexSource, selectedHTML, instruction)

	return c.complete("gpt-3.5-turbo", []ChatMessage{{Role: "user", Content: prompt}}, 2048, 0)
}

// RewriteText converts prose into LaTeX under the same formatting rules.
func (c *AIClient) RewriteText(text string, instructions string) (string, error) {
	prompt := fmt.Sprintf(`You are an AI assistant that edits English documents based on user instructions.

**Task**: Convert English text into LaTeX format according to the user's instructions.

%s

**English Text to Convert**:
%s

**User's Instructions**:
%s

**Instructions**:
- Convert the English text into valid LaTeX format
- All mathematical equations must be wrapped in $$ delimiters
- Use \left| and \right| for absolute value bars, not \left\| or \right\|
- Ensure the output is compatible with LaTeX.js limitations
- Do not include \begin{document} or \end{document} tags
- Do not include any preamble or package loading

**Output**:
[Provide only the LaTeX code.]`, latexLimitations, text, instructions)

	return c.complete("gpt-3.5-turbo", []ChatMessage{{Role: "user", Content: prompt}}, 2048, 0)
}

var (
	dataURIPrefix  = regexp.MustCompile(`^data:image/\w+;base64,`)
	openCodeFence  = regexp.MustCompile("^```(?:latex)?\\s*")
	closeCodeFence = regexp.MustCompile("\\s*```$")
)

// PhotoToLaTeX sends a base64 photo of handwritten math to a vision-capable
// model and returns the LaTeX transcription with any code fences stripped.
func (c *AIClient) PhotoToLaTeX(photo string) (string, error) {
	base64Image := dataURIPrefix.ReplaceAllString(photo, "")

	prompt := fmt.Sprintf(`You are an AI assistant that converts handwritten mathematical content into LaTeX format. Please convert the uploaded photo to LaTeX format, following these strict requirements:

1. Return ONLY the LaTeX code, with no additional explanations
2. ALL mathematical equations must be wrapped in '$$' delimiters (not \[ \] or $ $)
3. Use this exact document structure unless absolutely necessary to do otherwise:
4. WHEN WRITING ABSOLUTE VALUES, USE ONLY THE "|" SYMBOL, no slashes.

**DOCUMENT STRUCTURE**:

\documentclass{article}
\usepackage{amsmath}
\usepackage{amsfonts}

\begin{document}
[CONVERTED CONTENT GOES HERE]
\end{document}

4. Preserve all mathematical notation and formatting from the original image
5. Do not add any comments or explanations - only output valid LaTeX code
6. Do not include markdown code fences or language identifiers in your response
7. FOLLOW THESE IMPORTANT LATEX.JS LIMITATIONS:
%s`, latexLimitations)

	content := []ContentPart{
		{Type: "text", Text: prompt},
		{Type: "image_url", ImageURL: &ImageURL{URL: "data:image/jpeg;base64," + base64Image}},
	}

	completion, err := c.complete("gpt-4o-mini", []ChatMessage{{Role: "user", Content: content}}, 4096, 0.3)
	if err != nil {
		return "", err
	}

	completion = openCodeFence.ReplaceAllString(completion, "")
	completion = closeCodeFence.ReplaceAllString(completion, "")

	return completion, nil
}

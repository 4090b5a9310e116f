package socialcaption

import "strings"

const captionPromptTemplate = `Analyze this marketing image {{category}}and generate:
1. A compelling, engaging social media caption (2-3 sentences) suitable for Instagram, Facebook, and LinkedIn
2. A set of 8-12 relevant, popular hashtags to maximize engagement

Keep the caption professional yet engaging, highlighting the product's appeal and value proposition.
Format your response as JSON with this exact structure:
{
  "caption": "your caption here",
  "hashtags": ["hashtag1", "hashtag2", ...]
}`

// BuildCaptionPrompt - 카테고리가 있으면 "for a <category> business. " 문맥 추가
func BuildCaptionPrompt(categoryName string) string {
	categoryContext := ""
	if name := strings.TrimSpace(categoryName); name != "" {
		categoryContext = "for a " + name + " business. "
	}
	return strings.Replace(captionPromptTemplate, "{{category}}", categoryContext, 1)
}

package generateimage

import (
	"fmt"
	"strings"
)

const promptStyle = "The composition should be well-lit with professional lighting, clean background, " +
	"and focus on making the product look premium and desirable. " +
	"Style: commercial photography, professional, high-end marketing material."

// BuildPrompt - 카테고리 / 모델 타입으로 결정적인 프롬프트 생성
func BuildPrompt(categoryName, modelTypeName string) string {
	categoryName = strings.TrimSpace(categoryName)
	modelTypeName = strings.TrimSpace(modelTypeName)

	var subject string
	if modelTypeName != "" {
		subject = fmt.Sprintf("The image should feature a %s model showcasing the product in an elegant, high-quality commercial photography style.",
			strings.ToLower(modelTypeName))
	} else {
		subject = "The image should showcase the product in an elegant, high-quality commercial photography style."
	}

	return fmt.Sprintf("Create a professional marketing image for a %s product. %s %s", categoryName, subject, promptStyle)
}

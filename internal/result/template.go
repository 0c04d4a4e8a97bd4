package result

import "strings"

const citationRule = "Do not make up content or code that is not included in the results. " +
	"Stick strictly to the results. " +
	"!!Strictly append the URL Source as citations to the summary as ground truth!!"

const webTemplate = "Your goal is to provide the results based on the user's query in an understandable and concise manner. " +
	citationRule + "\n\n" +
	"This is the user's query: {{query}}\n\n" +
	"These are the results of the query:\n\n{{result}}"

const pdfTemplate = "Your goal is to provide a concise and specific answer based on the content of the provided PDF. " +
	citationRule + "\n\n" +
	"This is the result of the PDF:\n\n{{result}}"

// Template returns the instructional template for kind.
// Placeholders are {{query}} and {{result}}.
func Template(kind Kind) string {
	if kind == KindPDF {
		return pdfTemplate
	}
	return webTemplate
}

// Assemble interpolates query and raw into the template for kind.
// Substitution is single-pass, so placeholder text inside query or raw is
// left untouched.
func Assemble(kind Kind, query, raw string) string {
	return strings.NewReplacer("{{query}}", query, "{{result}}", raw).Replace(Template(kind))
}

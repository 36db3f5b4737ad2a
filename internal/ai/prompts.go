package ai

const summarySystemPrompt = `You write highlight summaries for a bookmarking service. The summary is shown as a preview next to a saved link.

Cover, in one paragraph:
1. The central subject of the page.
2. The key entities it mentions (people, products, technologies, organisations).
3. What kind of content it is (news report, tutorial, opinion, review, reference...) and its main takeaway.

Write a single dense paragraph under 400 words. Start directly with the substance: no openers such as "This article is about" or "The page discusses". No headings, lists or markdown.`

const summaryUserPrefix = "Please generate a highlight summary for the following content:\n\n"

const tagsSystemPrompt = `You categorise web pages for a bookmarking application so users can organise and find their links.

Identify the main subjects, technologies, themes and entities of the content, then answer with exactly six tags.

Rules:
- lowercase only
- words inside a tag joined with hyphens (for example: machine-learning)
- tags separated by commas
- no numbering, quotes, hashes, explanations or any other text`

const tagsUserPrefix = "Generate 6 tags for the following content:\n\n"

package openai

const summarySystemPrompt = `Summarize the following web page excerpt in 2-3 sentences.

Rules:
- Capture the main topic and the most important facts or claims.
- Preserve names, numbers, and technical terms exactly as written.
- Do not add information that is not present in the excerpt.
- Do not include any preamble such as "This text is about". State the content directly.
- Respond with plain prose only, no lists or markdown.`

const retrievalContextSystemPrompt = `You will be given an excerpt from a larger web page. Write one or two short sentences that situate the excerpt within the page it came from, so a search system can retrieve it more accurately.

Rules:
- Describe what the excerpt covers and, if inferable, where it fits in the page (introduction, example, conclusion, etc).
- Keep it brief. It will be prepended to the excerpt, not replace it.
- Do not repeat the excerpt itself.
- Respond with plain prose only, no lists or markdown.`

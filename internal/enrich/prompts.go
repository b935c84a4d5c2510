package enrich

// sentimentPrompt asks for a strict JSON object matching the enrichment
// contract keys. The model is still expected to misbehave occasionally;
// llmjson handles fences and trailing commas on the way back.
const sentimentPrompt = "Ты аналитик, изучающий отзывы клиентов банка. " +
	"Проанализируй текст отзыва ниже и ответь строго JSON без пояснений с ключами " +
	"sentiment, sentiment_score, summary, highlights. " +
	"sentiment — одно из значений: positive, negative, neutral. " +
	"sentiment_score — число от -1 до 1. summary — краткое описание до 40 слов. " +
	"highlights — список ключевых тезисов (короткие строки).\n\nОтзыв: "

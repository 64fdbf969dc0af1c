package llm

// Prompt templates for each generation variant. Each outbound-email
// prompt instructs the model to answer as "subject|||body" so the
// response can be split by SplitSubjectBody.

const initialPromptTemplate = `
Write a hyper-personalized strategic outreach email from %s, %s at %s.
The tone is that of a confident expert who has spotted an overlooked
opportunity and is offering a valuable, unsolicited blueprint. This is a
strategic opening move, not a sales pitch.

Recipient:
- Name: %s
- Company: %s
- Industry: %s
- Website: %s

Blueprint:
- Subject line: a single intriguing observation specific to their
  business, under 7 words, no question marks.
- Open with "Hi %s," followed by a brief polite greeting, then one
  precise strategic observation about their business. No generic
  pleasantries.
- Body: diagnose a likely challenge in their industry and articulate a
  concise, high-impact way %s can help, drawing on the attached
  knowledge file.
- Close with a low-pressure question that invites a strategic dialogue,
  not a meeting.

Rules:
1. No placeholders, square brackets, or source links in the output.
2. Do not prefix the subject with "Subject:".
3. End with this signature: Best regards, %s, %s, %s
4. Respond in exactly this format: Your Subject Line|||Your Full Email Body
`

const dripPromptTemplate = `
You are %s, %s at %s, writing follow-up #%d of a drip sequence to
%s at %s (industry: %s). You never "check in"; you provide tangible
value, continuing the earlier strategic conversation on this thread.

Brief for this follow-up:
1. Follow-up #1 (the gentle nudge): resurface the original idea with a
   powerful industry-relevant metric or statistic from the attached
   knowledge file.
2. Follow-up #2 (the proof point): summarize the most relevant
   mini-case study from the knowledge file, ideally in the %s sector,
   stating problem and outcome concisely.
3. Follow-up #3 (the graceful exit): politely close the loop, note this
   is your last note on the topic for now, and leave the door open. Use
   a simple final subject such as "Closing the loop".

Rules:
1. Start the body with "Hi %s,". Keep the body very brief, 2-4
   sentences.
2. No question marks in the subject line and no "Subject:" prefix.
3. No placeholders, square brackets, symbols, or source links.
4. Never use "Just following up" or "Checking in".
5. End with this signature: Best regards, %s, %s, %s
6. Respond in exactly this format: Your Subject Line|||Your Full Email Body
`

const queryResponsePromptTemplate = `
A prospect replied positively to our outreach and asked specific
questions. Write only the answering body text; no greeting, no subject
line, no signature — it will be embedded in a larger email.

Their questions:
%s

Guidance: thank them for their interest, answer each question
thoroughly but concisely, ground answers in %s's capabilities from the
attached knowledge file, focus on value and outcomes, no pricing
details, no special characters or symbols, and do not mention booking a
call or meeting. Keep it to two short paragraphs plus bullets at most.
`

const meetingInvitePromptTemplate = `
You are %s, %s at %s. A prospect has replied positively to our
outreach. Write a warm, natural response that converts their interest
into a meeting.

Context:
- Their name: %s
- Their company: %s
- Their reply: "%s"

Your response must:
1. Acknowledge their specific message.
2. Briefly bridge their interest to the value %s provides.
3. Naturally transition to asking for a brief introductory call and
   insert the exact placeholder [MEETING_BUTTON] where the
   call-to-action belongs.
4. Contain no special characters, bold markers, or symbols.

Respond in exactly this format: Subject Line|||Email Body
`

const negativeQueryPromptTemplate = `
A prospect has responded negatively to our outreach but asked specific
questions. Write only the body text of a brief, professional reply that
respectfully answers their questions while fully accepting their
rejection. No greeting, subject line, or signature.

Their response:
%s

Their questions:
%s

Guidance: thank them for their candor, answer each question concisely
with a high-level strategic perspective, do not argue or pitch, leave a
graceful opening for the future without requesting anything. One to two
paragraphs, no special characters or symbols.
`

const neutralQueryPromptTemplate = `
A prospect gave a neutral reply to our outreach but asked specific
questions. Write only the body text of a helpful, low-pressure answer.
No greeting, subject line, or signature.

Their questions:
%s

Guidance: thank them, answer with genuinely useful detail, build
credibility through expertise, no hard sell and no booking push, invite
further questions if they find it useful. At most three short
paragraphs, no special characters or symbols.
`

const industryPromptTemplate = `
Give me only the industry type of this company:
Name: %s
URL: %s
Reply with only the industry name (like 'Fintech', 'Marketing', 'Sports Tech').
`

const classifyPromptTemplate = `
You are an expert B2B communication analysis AI. Analyze the incoming
email reply below and return a single valid JSON object.

Criteria, in priority order:
1. Stop request: phrases like "unsubscribe", "remove me", "take me off
   your list", "don't email me again" set stopContact to true.
2. Query: a direct question about services, pricing, implementation,
   availability, case studies, or next steps sets hasQuery to true and
   the exact question text goes in queries.
3. Sentiment:
   - POSITIVE: buying signals — requests a proposal, quote, pricing,
     meeting, call, or demo; discusses budget, timeline, or project
     needs; strong positive language.
   - NEUTRAL: acknowledgment or information gathering without buying
     signals; polite deferral; general non-committal questions.
   - NEGATIVE: clear disinterest, "not a good fit", an existing
     solution, frustration, or any stop request.

INPUT EMAIL:
---
%s
---

Respond with exactly this JSON structure and nothing else:
{
  "sentiment": "POSITIVE", "NEGATIVE", or "NEUTRAL",
  "reasoning": "one sentence citing a key phrase",
  "hasQuery": true or false,
  "queries": "the question(s) asked, or 'none'",
  "stopContact": true or false
}
`

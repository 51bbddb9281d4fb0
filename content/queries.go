package content

// GROQ queries against the primary dataset. The projections flatten
// references so the results decode straight into Post and CaseStudy.
const (
	postProjection = `{
  _id,
  title,
  "slug": slug.current,
  excerpt,
  body,
  "author": coalesce(author->name, "` + DefaultAuthor + `"),
  publishedAt,
  "category": category->title,
  "tags": tags[]->title,
  "coverImage": mainImage.asset->url
}`

	caseStudyProjection = `{
  _id,
  title,
  "slug": slug.current,
  client,
  "industry": coalesce(industry, "` + DefaultIndustry + `"),
  summary,
  results,
  publishedAt,
  "coverImage": mainImage.asset->url
}`

	// PostsQuery lists posts, newest first. Params: $category (string or
	// null), $limit.
	PostsQuery = `*[_type == "post" && defined(slug.current) && ($category == null || category->slug.current == $category)]` +
		` | order(publishedAt desc) [0...$limit] ` + postProjection

	// PostBySlugQuery fetches one post. Params: $slug.
	PostBySlugQuery = `*[_type == "post" && slug.current == $slug][0] ` + postProjection

	// CaseStudiesQuery lists case studies, newest first. Params: $industry
	// (string or null), $limit.
	CaseStudiesQuery = `*[_type == "caseStudy" && defined(slug.current) && ($industry == null || industry == $industry)]` +
		` | order(publishedAt desc) [0...$limit] ` + caseStudyProjection
)
